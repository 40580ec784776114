// Package mock provides an in-memory [llm.Provider] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/orato-voice/orato/pkg/provider/llm"
)

// Provider is a scripted [llm.Provider]. Responses are returned in order;
// when the script runs out the last response repeats.
type Provider struct {
	mu sync.Mutex

	// Responses is the completion script. Each call to Complete consumes
	// the next entry.
	Responses []string

	// Err, when non-nil, is returned by every Complete call.
	Err error

	calls []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements [llm.Provider].
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	var content string
	switch n := len(p.calls); {
	case len(p.Responses) == 0:
	case n <= len(p.Responses):
		content = p.Responses[n-1]
	default:
		content = p.Responses[len(p.Responses)-1]
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// Calls returns every request Complete received.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.calls))
	copy(out, p.calls)
	return out
}
