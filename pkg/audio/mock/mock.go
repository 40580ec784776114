// Package mock provides in-memory implementations of [audio.Device] and
// [audio.CaptureStream] for use in unit tests.
//
// All mocks are safe for concurrent use. They record method calls so tests
// can assert on acquisition and release behaviour, and expose exported
// fields the test sets to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream(audio.Format{SampleRate: 16000, Channels: 1}, 16)
//	dev := &mock.Device{Stream: stream}
//	go func() {
//	    stream.PushPCM(pcm, 0)
//	    stream.EndOfInput()
//	}()
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/orato-voice/orato/pkg/audio"
	"github.com/orato-voice/orato/pkg/types"
)

// Device is a mock implementation of [audio.Device].
type Device struct {
	mu sync.Mutex

	// OpenErr, when non-nil, is returned by Open instead of Stream.
	OpenErr error

	// Stream is the capture stream handed out by Open.
	Stream *Stream

	// OpenDelay makes Open block for the given duration before returning,
	// simulating a pending permission prompt.
	OpenDelay time.Duration

	openCalls int
}

var _ audio.Device = (*Device)(nil)

// Open implements [audio.Device].
func (d *Device) Open(ctx context.Context) (audio.CaptureStream, error) {
	d.mu.Lock()
	d.openCalls++
	d.mu.Unlock()

	if d.OpenDelay > 0 {
		select {
		case <-time.After(d.OpenDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	return d.Stream, nil
}

// OpenCalls reports how many times Open was invoked.
func (d *Device) OpenCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openCalls
}

// Stream is a mock implementation of [audio.CaptureStream]. Tests feed it
// frames with [Stream.Push] or [Stream.PushPCM] and signal exhaustion with
// [Stream.EndOfInput].
type Stream struct {
	format audio.Format
	frames chan types.AudioFrame

	mu           sync.Mutex
	released     bool
	releaseCalls int
	closeOnce    sync.Once
}

var _ audio.CaptureStream = (*Stream)(nil)

// NewStream creates a mock stream reporting the given format, with a frame
// channel buffer of the given capacity.
func NewStream(f audio.Format, buffer int) *Stream {
	return &Stream{
		format: f,
		frames: make(chan types.AudioFrame, buffer),
	}
}

// Frames implements [audio.CaptureStream].
func (s *Stream) Frames() <-chan types.AudioFrame { return s.frames }

// Format implements [audio.CaptureStream].
func (s *Stream) Format() audio.Format { return s.format }

// Release implements [audio.CaptureStream]. The frame channel is closed so
// consumers unblock.
func (s *Stream) Release() error {
	s.mu.Lock()
	s.released = true
	s.releaseCalls++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.frames) })
	return nil
}

// Released reports whether Release has been called at least once.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// ReleaseCalls reports how many times Release was invoked.
func (s *Stream) ReleaseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseCalls
}

// Push delivers one frame to consumers. It drops the frame if the stream has
// been released.
func (s *Stream) Push(frame types.AudioFrame) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return
	}
	s.frames <- frame
}

// PushPCM delivers raw PCM bytes as a single frame in the stream's format.
func (s *Stream) PushPCM(pcm []byte, ts time.Duration) {
	s.Push(types.AudioFrame{
		Data:       pcm,
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Timestamp:  ts,
	})
}

// EndOfInput closes the frame channel without marking the stream released,
// simulating the device running out of input.
func (s *Stream) EndOfInput() {
	s.closeOnce.Do(func() { close(s.frames) })
}
