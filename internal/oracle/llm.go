package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/observe"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/pkg/provider/llm"
)

// LLM implements [Oracle] on top of an [llm.Provider].
type LLM struct {
	provider llm.Provider
	log      *slog.Logger
	metrics  *observe.Metrics

	// Temperature is forwarded to the provider on every request. Zero
	// requests the provider default.
	Temperature float64
}

// NewLLM wraps provider as an oracle. log and metrics may be nil.
func NewLLM(provider llm.Provider, log *slog.Logger, metrics *observe.Metrics) *LLM {
	if log == nil {
		log = slog.Default()
	}
	return &LLM{provider: provider, log: log, metrics: metrics}
}

// complete runs one JSON-only completion and returns the raw reply body
// with any surrounding markdown fence removed.
func (o *LLM) complete(ctx context.Context, op, system, user string) ([]byte, error) {
	start := time.Now()
	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  o.Temperature,
		JSONOnly:     true,
	})
	elapsed := time.Since(start)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordOracleRequest(ctx, op, elapsed, "error")
		}
		o.log.Error("oracle completion failed", "op", op, "error", err)
		return nil, fmt.Errorf("oracle %s: %w", op, err)
	}
	if o.metrics != nil {
		o.metrics.RecordOracleRequest(ctx, op, elapsed, "ok")
	}
	o.log.Debug("oracle completion",
		"op", op,
		"duration", elapsed,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return stripFence(resp.Content), nil
}

// stripFence removes a surrounding ```json markdown fence, which some models
// emit even when asked for a bare object. The content between the fences is
// not otherwise altered.
func stripFence(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return []byte(s)
}

// Analyze implements [Oracle].
func (o *LLM) Analyze(ctx context.Context, req AnalyzeRequest) (*report.Report, error) {
	system, user := buildAnalyzePrompt(req)
	body, err := o.complete(ctx, "analyze", system, user)
	if err != nil {
		return nil, err
	}
	rep, err := report.Decode(body)
	if err != nil {
		o.log.Warn("discarding malformed analysis reply", "error", err)
		return nil, err
	}
	return rep, nil
}

type challengeReply struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Narrative  string `json:"narrative"`
	Milestones []struct {
		Description string           `json:"description"`
		TaskType    journey.TaskType `json:"taskType"`
		Target      string           `json:"target"`
	} `json:"milestones"`
}

// ProposeChallenge implements [Oracle].
func (o *LLM) ProposeChallenge(ctx context.Context, sessions []session.Session, past []journey.Challenge) (*journey.Challenge, error) {
	system, user := buildChallengePrompt(sessions, past)
	body, err := o.complete(ctx, "challenge", system, user)
	if err != nil {
		return nil, err
	}

	var reply challengeReply
	if err := decodeStrict(body, &reply); err != nil {
		o.log.Warn("discarding malformed challenge reply", "error", err)
		return nil, err
	}
	if reply.Title == "" || len(reply.Milestones) == 0 {
		return nil, fmt.Errorf("%w: challenge missing title or milestones", report.ErrMalformedResponse)
	}

	ch := &journey.Challenge{
		ID:        uuid.NewString(),
		Type:      reply.Type,
		Title:     reply.Title,
		Narrative: reply.Narrative,
		Status:    journey.StatusSuggested,
	}
	for _, m := range reply.Milestones {
		switch m.TaskType {
		case journey.TaskSkillDrill, journey.TaskRecordSession, journey.TaskReRecordSession:
		default:
			return nil, fmt.Errorf("%w: unknown milestone task type %q", report.ErrMalformedResponse, m.TaskType)
		}
		if m.Description == "" {
			return nil, fmt.Errorf("%w: milestone without description", report.ErrMalformedResponse)
		}
		ch.Milestones = append(ch.Milestones, journey.Milestone{
			Description: m.Description,
			TaskType:    m.TaskType,
			Target:      m.Target,
			Status:      journey.MilestonePending,
		})
	}
	return ch, nil
}

type drillsReply struct {
	Drills []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Goal        string `json:"goal"`
	} `json:"drills"`
}

// GenerateDrills implements [Oracle].
func (o *LLM) GenerateDrills(ctx context.Context, rep *report.Report) ([]session.Drill, error) {
	system, user := buildDrillsPrompt(rep)
	body, err := o.complete(ctx, "drills", system, user)
	if err != nil {
		return nil, err
	}

	var reply drillsReply
	if err := decodeStrict(body, &reply); err != nil {
		o.log.Warn("discarding malformed drills reply", "error", err)
		return nil, err
	}
	if len(reply.Drills) == 0 {
		return nil, fmt.Errorf("%w: empty drill list", report.ErrMalformedResponse)
	}

	drills := make([]session.Drill, 0, len(reply.Drills))
	for _, d := range reply.Drills {
		if d.Title == "" || d.Description == "" {
			return nil, fmt.Errorf("%w: drill without title or description", report.ErrMalformedResponse)
		}
		drills = append(drills, session.Drill{
			ID:          uuid.NewString(),
			Title:       d.Title,
			Description: d.Description,
			Goal:        d.Goal,
		})
	}
	return drills, nil
}

// NextQATurn implements [Oracle].
func (o *LLM) NextQATurn(ctx context.Context, transcript string, persona *session.Persona, history []session.QAExchange) (*QATurn, error) {
	system, user := buildQAPrompt(transcript, persona, history)
	body, err := o.complete(ctx, "qa", system, user)
	if err != nil {
		return nil, err
	}

	var turn QATurn
	if err := decodeStrict(body, &turn); err != nil {
		o.log.Warn("discarding malformed qa reply", "error", err)
		return nil, err
	}
	if turn.NextQuestion == "" {
		return nil, fmt.Errorf("%w: qa turn without next question", report.ErrMalformedResponse)
	}
	return &turn, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", report.ErrMalformedResponse, err)
	}
	return nil
}
