// Package whisper provides a local batch transcription provider backed by
// the whisper.cpp CGO bindings. It implements the stt.Transcriber interface
// and serves as the offline fallback when the hosted transcriber is
// unavailable.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/orato-voice/orato/pkg/audio"
	"github.com/orato-voice/orato/pkg/provider/stt"
)

const (
	defaultLanguage = "pt"

	// whisperSampleRate is the only sample rate whisper.cpp accepts.
	whisperSampleRate = 16000
)

// Compile-time assertion that Provider satisfies stt.Transcriber.
var _ stt.Transcriber = (*Provider)(nil)

// Provider implements stt.Transcriber using whisper.cpp (CGO), eliminating
// network dependence entirely. The model is loaded once at startup and shared
// across all transcriptions.
type Provider struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language code for transcription (e.g., "en", "pt").
// Defaults to "pt".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Transcriber. Only WAV containers (and raw
// 16 kHz mono PCM tagged "audio/pcm") are supported locally; other
// containers would need a decoder this provider does not carry, so they are
// rejected and the caller's fallback chain moves on.
func (p *Provider) Transcribe(ctx context.Context, blob []byte, mime string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	samples, err := p.samplesFor(blob, mime)
	if err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}

	// Each whisper context is NOT thread-safe, but the model can be shared,
	// so a fresh context is created per call.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", p.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// samplesFor converts a supported blob into 16 kHz mono float32 samples.
func (p *Provider) samplesFor(blob []byte, mime string) ([]float32, error) {
	switch {
	case strings.HasPrefix(mime, "audio/wav"):
		pcm, f, err := audio.DecodeWAV(blob)
		if err != nil {
			return nil, fmt.Errorf("whisper: %w", err)
		}
		if f.Channels > 1 {
			pcm = audio.StereoToMono(pcm)
		}
		if f.SampleRate != whisperSampleRate {
			pcm = audio.ResampleMono16(pcm, f.SampleRate, whisperSampleRate)
		}
		return pcmToFloat32(pcm), nil
	case strings.HasPrefix(mime, "audio/pcm"):
		return pcmToFloat32(blob), nil
	default:
		return nil, fmt.Errorf("whisper: unsupported container %q", mime)
	}
}
