// Package openai provides a batch transcription provider backed by the
// OpenAI audio transcription API. It implements the stt.Transcriber
// interface and is the primary engine for the full-fidelity re-transcription
// pass after a recording stops.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/orato-voice/orato/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the stt.Transcriber interface.
var _ stt.Transcriber = (*Provider)(nil)

// Provider implements stt.Transcriber using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithLanguage sets the ISO-639-1 language hint sent with each request.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, [DefaultModel] is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai transcriber: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.language,
	}, nil
}

// Transcribe implements stt.Transcriber. The returned text is whitespace
// trimmed; an empty result with a nil error means no speech was recognised.
func (p *Provider) Transcribe(ctx context.Context, blob []byte, mime string) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}

	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(blob), fileNameFor(mime), mime),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcriber: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// fileNameFor derives a filename extension from the container MIME type.
// The API uses the extension to pick a demuxer.
func fileNameFor(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/ogg"):
		return "recording.ogg"
	case strings.HasPrefix(mime, "audio/wav"):
		return "recording.wav"
	case strings.HasPrefix(mime, "audio/webm"):
		return "recording.webm"
	case strings.HasPrefix(mime, "audio/mp4"):
		return "recording.m4a"
	default:
		return "recording.bin"
	}
}
