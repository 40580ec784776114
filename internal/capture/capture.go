// Package capture coordinates one recording session: it acquires the input
// device, fans captured PCM out to two consumers for the duration of the
// take, and assembles the finished audio artifact.
//
// The two consumers run in parallel and serve different masters. A
// low-latency live transcription stream (16 kHz mono PCM over the
// provider's websocket) feeds the teleprompter preview; a local recorder
// accumulates the full-fidelity take into an in-memory container blob. The
// live channel is best-effort throughout: its errors never abort the
// recording, because the reconciliation stage re-transcribes the local blob
// anyway.
package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Recording is the finalized artifact of one take.
type Recording struct {
	// Audio is the complete container blob.
	Audio []byte

	// MIME is the container type of Audio, e.g. "audio/ogg;codecs=opus".
	MIME string

	// Duration is the captured audio length, derived from sample counts
	// rather than wall clock.
	Duration time.Duration

	// LiveTranscript is the best-effort text accumulated from the live
	// streaming channel. Preview only, never authoritative.
	LiveTranscript string
}

// State is the coordinator's position in the recording lifecycle.
type State int

const (
	// StateIdle means no recording is in progress.
	StateIdle State = iota

	// StateRequestingPermission means the device open (and its permission
	// prompt) is pending.
	StateRequestingPermission

	// StateRecording means both consumers are running.
	StateRecording

	// StateStopped means intake has ended and the artifact is being
	// assembled.
	StateStopped

	// StateAnalyzing means the finished recording is with the oracle.
	StateAnalyzing

	// StateDone is the successful terminal state.
	StateDone

	// StateError is the failure terminal state; Err carries the cause.
	StateError
)

// String returns the state's lifecycle name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting_permission"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateAnalyzing:
		return "analyzing"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidState indicates an operation invoked in a lifecycle state
	// that does not permit it, such as stopping an idle coordinator.
	ErrInvalidState = errors.New("capture: invalid state for operation")

	// ErrRecordingTooShort indicates a take below the minimum duration.
	// The user must re-record; nothing this short is analyzable.
	ErrRecordingTooShort = errors.New("capture: recording too short")
)

func invalidState(op string, s State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, s)
}

func joinTranscript(finals []string, interim string) string {
	parts := finals
	if t := strings.TrimSpace(interim); t != "" {
		parts = append(append([]string(nil), finals...), t)
	}
	return strings.Join(parts, " ")
}
