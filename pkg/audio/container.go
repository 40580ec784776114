package audio

import (
	"fmt"

	"github.com/orato-voice/orato/pkg/types"
)

// Encoder consumes PCM frames and produces a finished audio container blob.
// Encoders are single-use: after Finalize the encoder must not be written to
// again. Not safe for concurrent use; the recorder owns its encoder.
type Encoder interface {
	// WriteFrame appends one PCM frame. Frames must match the format the
	// encoder was created with.
	WriteFrame(frame types.AudioFrame) error

	// Finalize flushes pending data and returns the complete container bytes.
	Finalize() ([]byte, error)

	// MIME returns the container MIME type, e.g. "audio/ogg;codecs=opus".
	MIME() string
}

// EncoderFactory creates an [Encoder] for PCM input in the given format.
type EncoderFactory func(f Format) (Encoder, error)

// PreferredContainers is the recording container preference order. Entries
// with no local encoder are skipped during selection; when nothing matches,
// WAV is used.
var PreferredContainers = []string{
	MIMEWebMOpus,
	MIMEWebM,
	MIMEMP4,
	MIMEOggOpus,
	MIMEWAV,
}

// Container MIME types known to the recorder.
const (
	MIMEWebMOpus = "audio/webm;codecs=opus"
	MIMEWebM     = "audio/webm"
	MIMEMP4      = "audio/mp4"
	MIMEOggOpus  = "audio/ogg;codecs=opus"
	MIMEWAV      = "audio/wav"
)

// encoderFactories maps container MIME types to their local encoders. WebM
// and MP4 remain in the preference list for parity with recorders that do
// support them, but have no local muxer here.
var encoderFactories = map[string]EncoderFactory{
	MIMEOggOpus: func(f Format) (Encoder, error) { return NewOggOpusEncoder(f) },
	MIMEWAV:     func(f Format) (Encoder, error) { return NewWAVEncoder(f), nil },
}

// NewPreferredEncoder returns an encoder for the first container in
// [PreferredContainers] that has a local encoder. Construction failures
// (e.g. an unsupported Opus sample rate) fall through to the next candidate.
func NewPreferredEncoder(f Format) (Encoder, error) {
	var lastErr error
	for _, mime := range PreferredContainers {
		factory, ok := encoderFactories[mime]
		if !ok {
			continue
		}
		enc, err := factory(f)
		if err != nil {
			lastErr = err
			continue
		}
		return enc, nil
	}
	return nil, fmt.Errorf("audio: no supported recording container for %s: %w", f, lastErr)
}

// Supported reports whether a local encoder exists for the given MIME type.
func Supported(mime string) bool {
	_, ok := encoderFactories[mime]
	return ok
}
