// Package session defines the persisted domain records of the speaking
// journey: recorded sessions with their reports, practice re-attempts, Q&A
// rounds, skill drills, and coaching personas.
//
// Wire names are camelCase JSON, shared by the record store and the HTTP
// surface.
package session

import (
	"time"

	"github.com/orato-voice/orato/internal/report"
)

// Analysis modes. The mode only affects how the oracle frames its prompt.
const (
	ModePresentation = "presentation"
	ModeClass        = "class"
	ModePitch        = "pitch"
	ModeInterview    = "interview"
)

// Session is one recorded and analyzed take. The authoritative transcript
// is always derived from the recorded audio; the live streaming text never
// survives past reconciliation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"startedAt"`

	// DurationSeconds is the recorded audio length, capped at the
	// recording ceiling.
	DurationSeconds float64 `json:"durationSeconds"`

	// Audio is the recorded container blob; AudioMIME is its type.
	Audio     []byte `json:"audio,omitempty"`
	AudioMIME string `json:"audioMime,omitempty"`

	Transcript string         `json:"transcript"`
	Report     *report.Report `json:"report,omitempty"`

	PracticeAttempts []PracticeAttempt `json:"practiceAttempts,omitempty"`
	QASessions       []QASession       `json:"qaSessions,omitempty"`

	Favorite     bool   `json:"favorite"`
	AnalysisMode string `json:"analysisMode,omitempty"`

	// PersonaID selects the coaching persona that framed the analysis.
	PersonaID string `json:"personaId,omitempty"`
}

// PracticeAttempt is a re-take of an existing session's speech, appended to
// the parent session rather than stored as a new one.
type PracticeAttempt struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	DurationSeconds float64        `json:"durationSeconds"`
	Transcript      string         `json:"transcript"`
	Report          *report.Report `json:"report,omitempty"`
}

// QASession is one question-and-answer round about a session: the oracle
// plays audience, the user answers, the oracle scores the answer.
type QASession struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`

	// PersonaID is the audience persona the round was started with.
	PersonaID string `json:"personaId,omitempty"`

	Exchanges []QAExchange `json:"exchanges"`
}

// QAExchange is one question, the user's answer, and the oracle's feedback
// on it.
type QAExchange struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer,omitempty"`
	Feedback string    `json:"feedback,omitempty"`
	AskedAt  time.Time `json:"askedAt"`
}

// Persona is a coaching voice the oracle can adopt.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Style is injected into the oracle's system prompt verbatim.
	Style string `json:"style"`
}

// Drill is one targeted exercise generated from a session's weakest
// dimensions.
type Drill struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// Goal is the metric family the drill trains, e.g. "clareza". Drill
	// completion is matched against skill-drill milestones by this value.
	Goal string `json:"goal"`

	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
