// Package stt defines the provider interfaces for speech-to-text backends.
//
// Orato uses transcription in two shapes:
//
//   - [StreamProvider] opens a live session that accepts raw PCM audio while
//     a recording is in progress and emits [types.TranscriptFragment] values
//     as the service produces them. The live transcript is advisory; it only
//     matters if the batch pass yields nothing.
//   - [Transcriber] re-transcribes the complete recorded blob after capture
//     stops. Its output, when non-empty, supersedes the live transcript.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/orato-voice/orato/pkg/types"
)

// StreamConfig describes the audio format and recognition hints for a new
// live transcription session.
type StreamConfig struct {
	// SampleRate is the PCM sample rate in Hz. Common value: 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// providers); implementations may downmix stereo internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US",
	// "pt-BR"). Empty lets the provider auto-detect, if supported.
	Language string
}

// SessionHandle represents an open live transcription session. It is an
// interface so test code can provide in-memory implementations.
//
// Callers must call Close when the session is no longer needed; failing to do
// so may leak goroutines and network connections inside the implementation.
// All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription.
	// The chunk must match the format agreed in StreamConfig. SendAudio
	// must not block on a slow connection; implementations drop chunks
	// rather than stall the caller's capture loop. Calling SendAudio after
	// Close returns an error.
	SendAudio(chunk []byte) error

	// Fragments returns the channel of transcript fragments, interim and
	// final alike. The channel is closed when the session ends.
	Fragments() <-chan types.TranscriptFragment

	// Done returns a channel that is closed once the provider has signalled
	// the end of its results: either an explicit end-of-transcript marker or
	// the underlying connection ending. After Done, no further fragments
	// will arrive.
	Done() <-chan struct{}

	// Close flushes pending audio, tears down the connection, and releases
	// all resources. The Fragments channel is closed as a consequence.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// StreamProvider opens live streaming transcription sessions.
type StreamProvider interface {
	// StartStream opens a new session with the given audio format. The
	// returned SessionHandle is ready to accept audio immediately. ctx
	// bounds session establishment only; the session's lifetime is
	// governed by Close, so handing StartStream a request-scoped context
	// must not kill the session when that request ends. The caller owns
	// the handle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// Transcriber transcribes a complete recorded audio blob in one shot.
type Transcriber interface {
	// Transcribe converts the audio blob (a finished container, identified
	// by its MIME type) into text. An empty string with a nil error means
	// the recording contained no recognisable speech.
	Transcribe(ctx context.Context, blob []byte, mime string) (string, error)
}
