// Package oracle is the analysis collaborator: everything the application
// asks a language model for goes through the [Oracle] interface. The LLM
// implementation enforces strict output schemas — a reply that does not
// parse is rejected wholesale with [report.ErrMalformedResponse], never
// partially salvaged.
package oracle

import (
	"context"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
)

// AnalyzeRequest carries one transcript to the oracle for scoring.
type AnalyzeRequest struct {
	Transcript string

	// Mode frames the analysis prompt (presentation, pitch, class,
	// interview). Empty means a general speech.
	Mode string

	// Persona, when non-nil, sets the coaching voice of the written
	// feedback.
	Persona *session.Persona

	// SimilarTranscripts are past transcripts of the same speaker, most
	// similar first. When present the oracle fills the evolution
	// sub-report.
	SimilarTranscripts []string

	// Previous, when non-nil, is the speaker's most recent prior report,
	// included as the evolution baseline.
	Previous *report.Report

	// BenchmarkReference, when non-empty, asks for a comparison against
	// the named reference speaker.
	BenchmarkReference string
}

// QATurn is the outcome of one question-and-answer round.
type QATurn struct {
	// Feedback scores the user's previous answer. Empty on the opening
	// turn.
	Feedback string `json:"feedback,omitempty"`

	// NextQuestion is the audience question to ask next.
	NextQuestion string `json:"nextQuestion"`
}

// Oracle is the LLM-backed analysis collaborator.
// Implementations must be safe for concurrent use.
type Oracle interface {
	// Analyze scores a transcript and returns the structured report.
	Analyze(ctx context.Context, req AnalyzeRequest) (*report.Report, error)

	// ProposeChallenge generates a new suggested challenge from the
	// user's session and challenge history. The returned challenge has a
	// fresh ID, suggested status, and pending milestones.
	ProposeChallenge(ctx context.Context, sessions []session.Session, past []journey.Challenge) (*journey.Challenge, error)

	// GenerateDrills produces targeted exercises for a report's weakest
	// dimensions.
	GenerateDrills(ctx context.Context, rep *report.Report) ([]session.Drill, error)

	// NextQATurn plays audience for a transcript: it scores the last
	// answer in history (if any) and asks the next question. A non-nil
	// persona sets the audience character.
	NextQATurn(ctx context.Context, transcript string, persona *session.Persona, history []session.QAExchange) (*QATurn, error)
}
