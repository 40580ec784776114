// Package mock provides in-memory implementations of the stt interfaces for
// use in unit tests. All mocks are safe for concurrent use.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/orato-voice/orato/pkg/provider/stt"
	"github.com/orato-voice/orato/pkg/types"
)

// StreamProvider is a mock implementation of [stt.StreamProvider].
type StreamProvider struct {
	mu sync.Mutex

	// StartErr, when non-nil, is returned by StartStream.
	StartErr error

	// Session is the handle returned by StartStream.
	Session *Session

	startCalls []stt.StreamConfig
}

var _ stt.StreamProvider = (*StreamProvider)(nil)

// StartStream implements [stt.StreamProvider].
func (p *StreamProvider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.startCalls = append(p.startCalls, cfg)
	p.mu.Unlock()
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	return p.Session, nil
}

// StartCalls returns the configs StartStream was called with.
func (p *StreamProvider) StartCalls() []stt.StreamConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stt.StreamConfig, len(p.startCalls))
	copy(out, p.startCalls)
	return out
}

// Session is a mock implementation of [stt.SessionHandle]. Tests emit
// fragments with [Session.Emit] and signal completion with
// [Session.MarkDone].
type Session struct {
	mu sync.Mutex

	// SendErr, when non-nil, is returned by SendAudio.
	SendErr error

	fragments chan types.TranscriptFragment
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once

	sent   [][]byte
	closed bool
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession creates a mock session with a fragment buffer of the given
// capacity.
func NewSession(buffer int) *Session {
	return &Session{
		fragments: make(chan types.TranscriptFragment, buffer),
		done:      make(chan struct{}),
	}
}

// SendAudio implements [stt.SessionHandle].
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.sent = append(s.sent, cp)
	return nil
}

// Fragments implements [stt.SessionHandle].
func (s *Session) Fragments() <-chan types.TranscriptFragment { return s.fragments }

// Done implements [stt.SessionHandle].
func (s *Session) Done() <-chan struct{} { return s.done }

// Close implements [stt.SessionHandle].
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.fragments) })
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SentChunks returns the audio chunks delivered via SendAudio.
func (s *Session) SentChunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// Emit delivers a fragment to the session consumer.
func (s *Session) Emit(text string, final bool) {
	s.fragments <- types.TranscriptFragment{Text: text, Final: final}
}

// MarkDone closes the done channel, simulating the provider's
// end-of-transcript marker.
func (s *Session) MarkDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Transcriber is a mock implementation of [stt.Transcriber].
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result string

	// Err, when non-nil, is returned by Transcribe.
	Err error

	calls int
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe implements [stt.Transcriber].
func (t *Transcriber) Transcribe(context.Context, []byte, string) (string, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	if t.Err != nil {
		return "", t.Err
	}
	return t.Result, nil
}

// Calls reports how many times Transcribe was invoked.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
