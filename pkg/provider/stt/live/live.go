// Package live provides a WebSocket-backed streaming transcription provider.
// It implements the stt.StreamProvider interface against Orato's live
// transcription wire protocol:
//
//   - the client sends binary frames of raw PCM audio;
//   - the server sends JSON text frames of the form
//     {"type":"transcript","text":"...","final":true|false,"confidence":0.9};
//   - when the client sends {"type":"CloseStream"} the server flushes pending
//     audio and answers with {"type":"done"} once the transcript is complete.
//
// The explicit "done" marker lets the capture coordinator wait for exactly
// the trailing fragments it is owed instead of sleeping a fixed grace period.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/orato-voice/orato/pkg/provider/stt"
	"github.com/orato-voice/orato/pkg/types"
)

const (
	defaultLanguage   = "pt-BR"
	defaultSampleRate = 16000

	// closeFlushTimeout bounds how long Close waits for the service to
	// answer CloseStream with its done marker.
	closeFlushTimeout = 3 * time.Second
)

// Option is a functional option for configuring the live Provider.
type Option func(*Provider)

// WithModel sets the transcription model requested from the service.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the provider-level default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// Provider implements stt.StreamProvider over a WebSocket endpoint.
type Provider struct {
	endpoint   string
	apiKey     string
	model      string
	language   string
	sampleRate int
}

var _ stt.StreamProvider = (*Provider)(nil)

// New creates a live Provider for the given WebSocket endpoint (ws:// or
// wss://). endpoint must be non-empty; apiKey may be empty for services
// without authentication.
func New(endpoint, apiKey string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("live: endpoint must not be empty")
	}
	p := &Provider{
		endpoint:   endpoint,
		apiKey:     apiKey,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session. It respects
// cfg.SampleRate, cfg.Channels, and cfg.Language.
//
// ctx bounds the WebSocket handshake only. The session itself lives until
// Close is called, so a short-lived request context (an HTTP start request,
// say) can safely open a session that outlasts it.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("live: build URL: %w", err)
	}

	headers := http.Header{}
	if p.apiKey != "" {
		headers.Set("Authorization", "Bearer "+p.apiKey)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("live: dial: %w", err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{
		conn:      conn,
		ctx:       sctx,
		cancel:    cancel,
		fragments: make(chan types.TranscriptFragment, 64),
		audio:     make(chan []byte, 256),
		done:      make(chan struct{}),
		failed:    make(chan struct{}),
		closed:    make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop()
	go sess.writeLoop()

	return sess, nil
}

// buildURL constructs the streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	if p.model != "" {
		q.Set("model", p.model)
	}
	q.Set("language", lang)
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("interim_results", "true")
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// serverMessage is the JSON structure sent by the transcription service.
type serverMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
}

// session is a live streaming session. It implements stt.SessionHandle.
// Its read and write loops run on a context detached from the one that
// opened it; Close cancels them.
type session struct {
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
	fragments chan types.TranscriptFragment
	audio     chan []byte

	// done closes when the server signals end of results (or the read loop
	// exits); failed closes when the write loop dies on a send error;
	// closed closes when Close is called.
	done     chan struct{}
	failed   chan struct{}
	closed   chan struct{}
	doneOnce sync.Once
	failOnce sync.Once
	once     sync.Once
	wg       sync.WaitGroup
}

// SendAudio queues a PCM chunk for delivery to the service. When the send
// buffer is full the chunk is dropped rather than queued: a lagging live
// preview must never stall audio intake, and the batch pass re-transcribes
// the full recording anyway.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.closed:
		return errors.New("live: session is closed")
	case <-s.failed:
		return errors.New("live: stream writer is down")
	default:
	}
	select {
	case s.audio <- chunk:
	default:
	}
	return nil
}

// Fragments returns the channel of transcript fragments.
func (s *session) Fragments() <-chan types.TranscriptFragment { return s.fragments }

// Done returns the channel closed once the server has finished its results.
func (s *session) Done() <-chan struct{} { return s.done }

// Close terminates the session cleanly. It asks the service to flush
// pending audio, waits briefly for the done marker, then tears the
// connection down.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.closed)
		ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
		_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		select {
		case <-s.done:
		case <-ctx.Done():
		}
		cancel()
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages. A send
// error marks the session failed so SendAudio stops accepting chunks.
func (s *session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
				s.failOnce.Do(func() { close(s.failed) })
				return
			}
		case <-s.closed:
			// Drain buffered audio before exiting so the final fragments
			// cover everything that was captured.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(s.ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages and dispatches fragments. It owns the
// fragments channel and the done marker.
func (s *session) readLoop() {
	defer s.wg.Done()
	defer close(s.fragments)
	defer s.doneOnce.Do(func() { close(s.done) })

	for {
		_, msg, err := s.conn.Read(s.ctx)
		if err != nil {
			// Normal close or context cancellation.
			return
		}

		frag, kind := parseServerMessage(msg)
		switch kind {
		case messageTranscript:
			select {
			case s.fragments <- frag:
			case <-s.closed:
			}
		case messageDone:
			s.doneOnce.Do(func() { close(s.done) })
		case messageError:
			slog.Warn("live transcription service reported an error",
				"message", frag.Text)
		}
	}
}

// messageKind classifies a parsed server message.
type messageKind int

const (
	messageIgnore messageKind = iota
	messageTranscript
	messageDone
	messageError
)

// parseServerMessage parses a raw WebSocket message. For messageError the
// returned fragment carries the error text in its Text field.
func parseServerMessage(data []byte) (types.TranscriptFragment, messageKind) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return types.TranscriptFragment{}, messageIgnore
	}

	switch msg.Type {
	case "transcript":
		if msg.Text == "" {
			return types.TranscriptFragment{}, messageIgnore
		}
		return types.TranscriptFragment{
			Text:       msg.Text,
			Final:      msg.Final,
			Confidence: msg.Confidence,
		}, messageTranscript
	case "done":
		return types.TranscriptFragment{}, messageDone
	case "error":
		return types.TranscriptFragment{Text: msg.Message}, messageError
	default:
		return types.TranscriptFragment{}, messageIgnore
	}
}
