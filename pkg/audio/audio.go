// Package audio defines the interfaces and types for audio input devices and
// local recording within Orato.
//
// The two primary abstractions are:
//
//   - [Device] — opens the microphone (or another input source) and returns a
//     [CaptureStream].
//   - [CaptureStream] — an active capture delivering [types.AudioFrame] values
//     until released.
//
// Implementations wrap platform-specific capture backends. The interfaces are
// intentionally narrow so the capture coordinator stays decoupled from the
// capture backend. This package lives under pkg/ because external capture
// adapters are expected to implement [Device] and [CaptureStream].
package audio

import (
	"context"
	"errors"

	"github.com/orato-voice/orato/pkg/types"
)

// ErrPermissionDenied is returned by [Device.Open] when the user (or the
// operating system) refuses access to the input device.
var ErrPermissionDenied = errors.New("audio: input device permission denied")

// ErrDeviceUnavailable is returned by [Device.Open] when no usable input
// device exists or the device is claimed by another process.
var ErrDeviceUnavailable = errors.New("audio: input device unavailable")

// Device is the entry point for an audio input source.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// Open acquires the input device and starts capturing. The supplied ctx
	// governs the acquisition attempt only; once open, the stream remains
	// alive until [CaptureStream.Release] is called.
	//
	// Returns [ErrPermissionDenied] or [ErrDeviceUnavailable] (possibly
	// wrapped) when the device cannot be acquired.
	Open(ctx context.Context) (CaptureStream, error)
}

// CaptureStream is an active capture on an input device.
//
// Implementations must be safe for concurrent use.
type CaptureStream interface {
	// Frames returns the channel delivering captured PCM frames. The channel
	// is closed when the stream is released or the device fails.
	Frames() <-chan types.AudioFrame

	// Format reports the native format the device captures in.
	Format() Format

	// Release stops capturing and frees the underlying hardware track.
	// It is safe to call more than once; subsequent calls are no-ops.
	Release() error
}
