// Package mock provides a canned [oracle.Oracle] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/oracle"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
)

// Oracle returns pre-seeded values from every method. A nil canned value
// together with a nil error yields a zero-value result. Err, when set,
// is returned by every method.
type Oracle struct {
	mu sync.Mutex

	Report    *report.Report
	Challenge *journey.Challenge
	Drills    []session.Drill
	QATurn    *oracle.QATurn
	Err       error

	analyzeReqs []oracle.AnalyzeRequest
	qaCalls     int
	proposals   int
}

var _ oracle.Oracle = (*Oracle)(nil)

func (o *Oracle) Analyze(_ context.Context, req oracle.AnalyzeRequest) (*report.Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.analyzeReqs = append(o.analyzeReqs, req)
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Report, nil
}

func (o *Oracle) ProposeChallenge(context.Context, []session.Session, []journey.Challenge) (*journey.Challenge, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.proposals++
	if o.Err != nil {
		return nil, o.Err
	}
	if o.Challenge == nil {
		return nil, nil
	}
	ch := *o.Challenge
	ch.Milestones = append([]journey.Milestone(nil), o.Challenge.Milestones...)
	return &ch, nil
}

func (o *Oracle) GenerateDrills(context.Context, *report.Report) ([]session.Drill, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	return append([]session.Drill(nil), o.Drills...), nil
}

func (o *Oracle) NextQATurn(context.Context, string, *session.Persona, []session.QAExchange) (*oracle.QATurn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.qaCalls++
	if o.Err != nil {
		return nil, o.Err
	}
	return o.QATurn, nil
}

// AnalyzeRequests returns every request Analyze received.
func (o *Oracle) AnalyzeRequests() []oracle.AnalyzeRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]oracle.AnalyzeRequest(nil), o.analyzeReqs...)
}

// Proposals returns how many times ProposeChallenge was called.
func (o *Oracle) Proposals() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proposals
}
