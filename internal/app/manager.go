// Package app is the application core: it drives a recording from capture
// through reconciliation and analysis into storage, and owns the challenge,
// drill and question-round workflows on top of the stored sessions.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orato-voice/orato/internal/capture"
	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/observe"
	"github.com/orato-voice/orato/internal/oracle"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/internal/store"
	"github.com/orato-voice/orato/internal/transcript"
	"github.com/orato-voice/orato/pkg/provider/embeddings"
)

// ErrNoReport indicates an operation that needs an analysis report on a
// session that has none.
var ErrNoReport = errors.New("app: session has no analysis report")

// similarTopK is how many semantically similar past sessions are retrieved
// to prime history-aware analysis.
const similarTopK = 3

// Config wires a [Manager]. Coordinator, Reconciler, Oracle and Store are
// required; Index and Embedder enable similar-session retrieval when both
// are set; Logger, Metrics and Clock may be nil.
type Config struct {
	Coordinator *capture.Coordinator
	Reconciler  *transcript.Reconciler
	Oracle      oracle.Oracle
	Store       store.RecordStore
	Index       store.SessionIndex
	Embedder    embeddings.Provider
	Logger      *slog.Logger
	Metrics     *observe.Metrics

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Manager is the application core. All methods are safe for concurrent use;
// recording methods serialize on the capture coordinator's state machine.
type Manager struct {
	coordinator *capture.Coordinator
	reconciler  *transcript.Reconciler
	oracle      oracle.Oracle
	store       store.RecordStore
	index       store.SessionIndex
	embedder    embeddings.Provider
	log         *slog.Logger
	metrics     *observe.Metrics
	now         func() time.Time

	// genMu makes challenge generation single-flight.
	genMu sync.Mutex
}

// New builds a Manager from cfg.
func New(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{
		coordinator: cfg.Coordinator,
		reconciler:  cfg.Reconciler,
		oracle:      cfg.Oracle,
		store:       cfg.Store,
		index:       cfg.Index,
		embedder:    cfg.Embedder,
		log:         log,
		metrics:     cfg.Metrics,
		now:         now,
	}
}

// StartRecording opens the input device and begins capturing.
func (m *Manager) StartRecording(ctx context.Context) error {
	return m.coordinator.Start(ctx)
}

// CancelRecording abandons an in-flight recording without persisting
// anything. Safe to call in any state.
func (m *Manager) CancelRecording() error {
	return m.coordinator.Cancel()
}

// RecordingStatus reports the capture state machine.
type RecordingStatus struct {
	State   capture.State `json:"state"`
	Elapsed float64       `json:"elapsedSeconds"`
	Error   string        `json:"error,omitempty"`
}

// Status returns the current recording state.
func (m *Manager) Status() RecordingStatus {
	st := RecordingStatus{
		State:   m.coordinator.State(),
		Elapsed: m.coordinator.Elapsed().Seconds(),
	}
	if err := m.coordinator.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// FinishRequest frames the analysis of a finished recording.
type FinishRequest struct {
	// Title names the new session. Empty picks a timestamp-based default.
	Title string

	// Mode frames the analysis (presentation, class, pitch, interview).
	Mode string

	// PersonaID selects the coaching persona for the written feedback.
	PersonaID string

	// Benchmark, when non-empty, asks for a comparison against the named
	// reference speaker.
	Benchmark string
}

// FinishSession stops the recording, reconciles the transcripts, analyzes
// the speech and persists the new session. On any failure nothing is
// persisted and the capture machine lands in the error state.
func (m *Manager) FinishSession(ctx context.Context, req FinishRequest) (*session.Session, error) {
	rec, err := m.coordinator.Stop(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.coordinator.BeginAnalysis(); err != nil {
		return nil, err
	}

	sess, err := m.analyzeAndStore(ctx, rec, req)
	m.coordinator.FinishAnalysis(err)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) analyzeAndStore(ctx context.Context, rec *capture.Recording, req FinishRequest) (*session.Session, error) {
	text, err := m.reconciler.Reconcile(ctx, rec.Audio, rec.MIME, rec.LiveTranscript)
	if err != nil {
		return nil, err
	}

	persona, err := m.lookupPersona(ctx, req.PersonaID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	id := uuid.NewString()
	areq := oracle.AnalyzeRequest{
		Transcript:         text,
		Mode:               req.Mode,
		Persona:            persona,
		Previous:           m.previousReport(ctx),
		SimilarTranscripts: m.similarTranscripts(ctx, text, id),
		BenchmarkReference: req.Benchmark,
	}
	rep, err := m.oracle.Analyze(ctx, areq)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = "Sessão de " + now.Format("02/01/2006 15:04")
	}
	sess := &session.Session{
		ID:              id,
		Title:           title,
		StartedAt:       now.Add(-rec.Duration),
		DurationSeconds: rec.Duration.Seconds(),
		Audio:           rec.Audio,
		AudioMIME:       rec.MIME,
		Transcript:      text,
		Report:          rep,
		AnalysisMode:    req.Mode,
		PersonaID:       req.PersonaID,
	}
	if err := store.PutJSON(ctx, m.store, store.CollectionSessions, sess.ID, sess); err != nil {
		return nil, err
	}
	m.log.Info("session stored", "session_id", sess.ID, "duration", rec.Duration, "transcript_len", len(text))

	m.evaluateActive(ctx, rep)
	m.indexSession(ctx, sess.ID, text)
	return sess, nil
}

// FinishPractice stops the recording and stores it as a practice attempt on
// an existing session. The attempt is analyzed against the parent session's
// framing, and its report becomes the one evaluation and history use.
func (m *Manager) FinishPractice(ctx context.Context, sessionID string) (*session.PracticeAttempt, error) {
	parent, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rec, err := m.coordinator.Stop(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.coordinator.BeginAnalysis(); err != nil {
		return nil, err
	}

	attempt, err := m.analyzePractice(ctx, parent, rec)
	m.coordinator.FinishAnalysis(err)
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (m *Manager) analyzePractice(ctx context.Context, parent *session.Session, rec *capture.Recording) (*session.PracticeAttempt, error) {
	text, err := m.reconciler.Reconcile(ctx, rec.Audio, rec.MIME, rec.LiveTranscript)
	if err != nil {
		return nil, err
	}

	persona, err := m.lookupPersona(ctx, parent.PersonaID)
	if err != nil {
		return nil, err
	}

	rep, err := m.oracle.Analyze(ctx, oracle.AnalyzeRequest{
		Transcript: text,
		Mode:       parent.AnalysisMode,
		Persona:    persona,
		Previous:   latestReport(parent),
	})
	if err != nil {
		return nil, err
	}

	attempt := session.PracticeAttempt{
		ID:              uuid.NewString(),
		Timestamp:       m.now(),
		DurationSeconds: rec.Duration.Seconds(),
		Transcript:      text,
		Report:          rep,
	}
	parent.PracticeAttempts = append(parent.PracticeAttempts, attempt)
	if err := store.PutJSON(ctx, m.store, store.CollectionSessions, parent.ID, parent); err != nil {
		return nil, err
	}
	m.log.Info("practice attempt stored", "session_id", parent.ID, "attempt_id", attempt.ID)

	m.evaluateActive(ctx, rep)
	return &attempt, nil
}

// previousReport returns the newest stored session's report as the
// evolution baseline, preferring the newest practice attempt's. Lookup
// failures are logged and yield nil.
func (m *Manager) previousReport(ctx context.Context) *report.Report {
	sessions, err := m.Sessions(ctx)
	if err != nil {
		m.log.Warn("loading session history failed", "error", err)
		return nil
	}
	for i := range sessions {
		if rep := latestReport(&sessions[i]); rep != nil {
			return rep
		}
	}
	return nil
}

// latestReport is the report milestone evaluation and history use: the
// newest practice attempt's when present, otherwise the session's own.
func latestReport(s *session.Session) *report.Report {
	for i := len(s.PracticeAttempts) - 1; i >= 0; i-- {
		if s.PracticeAttempts[i].Report != nil {
			return s.PracticeAttempts[i].Report
		}
	}
	return s.Report
}

// similarTranscripts retrieves semantically similar past transcripts for
// the analysis prompt. Requires both an embedder and an index; any failure
// is logged and degrades to no history.
func (m *Manager) similarTranscripts(ctx context.Context, text, excludeID string) []string {
	if m.embedder == nil || m.index == nil {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		m.log.Warn("embedding transcript failed", "error", err)
		return nil
	}
	hits, err := m.index.SimilarSessions(ctx, vec, similarTopK, excludeID)
	if err != nil {
		m.log.Warn("similar-session lookup failed", "error", err)
		return nil
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Transcript)
	}
	return out
}

// indexSession upserts the session transcript into the semantic index.
// Failures are logged; the session is already persisted at this point.
func (m *Manager) indexSession(ctx context.Context, id, text string) {
	if m.embedder == nil || m.index == nil {
		return
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		m.log.Warn("embedding session failed", "session_id", id, "error", err)
		return
	}
	if err := m.index.IndexSession(ctx, id, text, vec); err != nil {
		m.log.Warn("indexing session failed", "session_id", id, "error", err)
	}
}

// evaluateActive runs the active challenge's milestones against a fresh
// report and persists any transition. Failures here never fail the session
// that produced the report.
func (m *Manager) evaluateActive(ctx context.Context, rep *report.Report) {
	challenges, err := m.loadChallenges(ctx)
	if err != nil {
		m.log.Warn("loading challenges for evaluation failed", "error", err)
		return
	}
	active := journey.Active(challenges)
	if active == nil {
		return
	}
	before := completedMilestones(active)
	evaluator := journey.NewEvaluator(m.log, m.metrics)
	completed := evaluator.EvaluateReport(ctx, active, rep, m.now())
	if !completed && completedMilestones(active) == before {
		return
	}
	if err := m.saveChallenges(ctx, challenges); err != nil {
		m.log.Warn("persisting challenge evaluation failed", "error", err)
	}
}

func completedMilestones(ch *journey.Challenge) int {
	n := 0
	for _, ms := range ch.Milestones {
		if ms.Status == journey.MilestoneCompleted {
			n++
		}
	}
	return n
}

func (m *Manager) lookupPersona(ctx context.Context, id string) (*session.Persona, error) {
	if id == "" {
		return nil, nil
	}
	p, err := store.GetJSON[session.Persona](ctx, m.store, store.CollectionPersonas, id)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", id, err)
	}
	return &p, nil
}
