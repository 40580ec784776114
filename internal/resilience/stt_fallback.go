package resilience

import (
	"context"

	"github.com/orato-voice/orato/pkg/provider/stt"
)

// TranscribeFallback implements [stt.Transcriber] with automatic failover
// across multiple batch transcription backends, each with its own circuit
// breaker. The usual arrangement is a cloud transcriber as primary and a
// local whisper model as fallback, so a finished recording can still be
// reconciled when the network is down.
type TranscribeFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred backend.
func NewTranscribeFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcriber as a fallback.
func (f *TranscribeFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Transcribe runs the blob through the first healthy backend. A backend
// that rejects the blob's container format counts as a failure and the next
// backend is tried.
func (f *TranscribeFallback) Transcribe(ctx context.Context, blob []byte, mime string) (string, error) {
	return ExecuteWithResult(f.group, func(t stt.Transcriber) (string, error) {
		return t.Transcribe(ctx, blob, mime)
	})
}

// StreamFallback implements [stt.StreamProvider] with automatic failover
// for the initial stream handshake. Only session establishment is covered;
// once a live session is running, mid-stream errors surface through the
// session's own channels and the recording continues without the live
// preview.
type StreamFallback struct {
	group *FallbackGroup[stt.StreamProvider]
}

var _ stt.StreamProvider = (*StreamFallback)(nil)

// NewStreamFallback creates a [StreamFallback] with primary as the
// preferred backend.
func NewStreamFallback(primary stt.StreamProvider, primaryName string, cfg FallbackConfig) *StreamFallback {
	return &StreamFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional streaming provider as a fallback.
func (f *StreamFallback) AddFallback(name string, p stt.StreamProvider) {
	f.group.AddFallback(name, p)
}

// StartStream opens a live transcription session against the first healthy
// provider.
func (f *StreamFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(f.group, func(p stt.StreamProvider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
