package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orato-voice/orato/internal/observe"
	"github.com/orato-voice/orato/pkg/audio"
	"github.com/orato-voice/orato/pkg/provider/stt"
)

// Defaults for [Config].
const (
	DefaultMaxDuration = 300 * time.Second
	DefaultMinDuration = 3 * time.Second

	// DefaultGraceIdle bounds the wait for late streaming fragments after
	// stop. The provider's done marker ends the wait early; the idle
	// timeout covers providers that never send one.
	DefaultGraceIdle = 1200 * time.Millisecond
)

// liveFormat is the PCM format the live transcription endpoint expects.
var liveFormat = audio.Format{SampleRate: 16000, Channels: 1}

// Config configures a [Coordinator].
type Config struct {
	// Device provides capture streams.
	Device audio.Device

	// Streams opens live transcription sessions. May be nil to record
	// without a live preview.
	Streams stt.StreamProvider

	// Language is the live transcription language hint.
	Language string

	// MaxDuration is the recording ceiling. Reaching it stops the take
	// automatically, as if the user had pressed stop; the assembled
	// recording waits for the next Stop call. Default: 300s.
	MaxDuration time.Duration

	// MinDuration is the shortest acceptable take. Default: 3s.
	MinDuration time.Duration

	// GraceIdle is the post-stop fragment idle timeout. Default: 1200ms.
	GraceIdle time.Duration

	// Logger defaults to [slog.Default]. Metrics may be nil.
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Coordinator runs one recording session at a time. All exported methods
// are safe for concurrent use.
type Coordinator struct {
	cfg Config

	mu            sync.Mutex
	state         State
	lastErr       error
	stream        audio.CaptureStream
	session       stt.SessionHandle
	enc           audio.Encoder
	elapsed       time.Duration
	finals        []string
	interim       string
	liveDown      bool
	released      bool
	sessionClosed bool
	ceilingHit    bool
	group         *errgroup.Group
	activity      chan struct{}

	// Set by the ceiling's automatic stop: stopDone closes once the take
	// has been assembled, pending holds the result until Stop collects it.
	stopDone   chan struct{}
	pending    *Recording
	pendingErr error
}

// New creates an idle [Coordinator]. Zero-value durations in cfg are
// replaced with defaults.
func New(cfg Config) *Coordinator {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.GraceIdle <= 0 {
		cfg.GraceIdle = DefaultGraceIdle
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{cfg: cfg, state: StateIdle}
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the coordinator to [StateError], or nil.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Elapsed returns the captured audio length so far.
func (c *Coordinator) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// LiveTranscript returns the text accumulated from the live channel so far:
// the finalized fragments plus the current interim fragment, if any.
func (c *Coordinator) LiveTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return joinTranscript(c.finals, c.interim)
}

// Start acquires the input device and begins both consumers.
//
// Device failures are fatal and distinguishable: [audio.ErrPermissionDenied]
// and [audio.ErrDeviceUnavailable] pass through wrapped, so callers can show
// the right retry guidance. A live-stream handshake failure is not fatal:
// the recording proceeds without a live preview.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		defer c.mu.Unlock()
		return invalidState("start", c.state)
	}
	c.state = StateRequestingPermission
	c.mu.Unlock()

	stream, err := c.cfg.Device.Open(ctx)
	if err != nil {
		c.fail(fmt.Errorf("open input device: %w", err))
		return fmt.Errorf("open input device: %w", err)
	}

	enc, err := audio.NewPreferredEncoder(stream.Format())
	if err != nil {
		_ = stream.Release()
		c.fail(err)
		return err
	}

	var session stt.SessionHandle
	if c.cfg.Streams != nil {
		session, err = c.cfg.Streams.StartStream(ctx, stt.StreamConfig{
			SampleRate: liveFormat.SampleRate,
			Channels:   liveFormat.Channels,
			Language:   c.cfg.Language,
		})
		if err != nil {
			c.cfg.Logger.Warn("live transcription unavailable, recording without preview",
				"error", err)
			session = nil
		}
	}

	c.mu.Lock()
	if c.state != StateRequestingPermission {
		// Cancelled while the permission prompt was pending.
		state := c.state
		c.mu.Unlock()
		_ = stream.Release()
		if session != nil {
			_ = session.Close()
		}
		return invalidState("start", state)
	}
	c.stream = stream
	c.session = session
	c.enc = enc
	c.elapsed = 0
	c.finals = nil
	c.interim = ""
	c.liveDown = false
	c.released = false
	c.sessionClosed = false
	c.ceilingHit = false
	c.stopDone = nil
	c.pending = nil
	c.pendingErr = nil
	c.activity = make(chan struct{}, 1)
	c.state = StateRecording
	g := &errgroup.Group{}
	c.group = g
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.AddActiveRecordings(ctx, 1)
	}

	g.Go(c.pump)
	if session != nil {
		g.Go(c.collect)
	}
	c.cfg.Logger.Info("recording started",
		"format", stream.Format().String(),
		"container", enc.MIME(),
		"live_preview", session != nil)
	return nil
}

// pump drains device frames into the recorder and, converted to the live
// format, into the streaming session. It ends when the frame channel
// closes, which happens on stop, cancel, or the ceiling.
func (c *Coordinator) pump() error {
	conv := &audio.FormatConverter{Target: liveFormat}
	for frame := range c.stream.Frames() {
		c.mu.Lock()
		enc := c.enc
		session := c.session
		liveDown := c.liveDown
		c.mu.Unlock()

		if err := enc.WriteFrame(frame); err != nil {
			c.releaseStream()
			return fmt.Errorf("recorder: %w", err)
		}

		var hitCeiling bool
		if frame.SampleRate > 0 && frame.Channels > 0 {
			samples := len(frame.Data) / (2 * frame.Channels)
			c.mu.Lock()
			c.elapsed += time.Duration(samples) * time.Second / time.Duration(frame.SampleRate)
			hitCeiling = !c.ceilingHit && c.elapsed >= c.cfg.MaxDuration
			if hitCeiling {
				c.ceilingHit = true
			}
			c.mu.Unlock()
		}

		if session != nil && !liveDown {
			live := conv.Convert(frame)
			if len(live.Data) > 0 {
				if err := session.SendAudio(live.Data); err != nil {
					c.cfg.Logger.Warn("live transcription send failed, continuing without preview",
						"error", err)
					c.mu.Lock()
					c.liveDown = true
					c.mu.Unlock()
					c.closeSession(session)
				}
			}
		}

		if hitCeiling {
			c.cfg.Logger.Info("recording ceiling reached, stopping automatically",
				"ceiling", c.cfg.MaxDuration)
			c.releaseStream()
			go c.autoStop()
		}
	}
	return nil
}

// collect accumulates live transcript fragments. Final fragments append to
// the transcript; an interim fragment replaces the previous interim until a
// final supersedes it. Each arrival signals activity for the post-stop
// grace wait.
func (c *Coordinator) collect() error {
	for frag := range c.session.Fragments() {
		c.mu.Lock()
		if frag.Final {
			if t := strings.TrimSpace(frag.Text); t != "" {
				c.finals = append(c.finals, t)
			}
			c.interim = ""
		} else {
			c.interim = frag.Text
		}
		activity := c.activity
		c.mu.Unlock()

		if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordStreamFragment(context.Background(), frag.Final)
		}
		select {
		case activity <- struct{}{}:
		default:
		}
	}
	return nil
}

// Stop ends the take and assembles the finished [Recording].
//
// Order matters: the local recorder is finalized first (releasing the
// device closes the frame channel and the pump drains what remains), then
// the streaming channel gets a grace window for late fragments before it is
// torn down. The grace wait ends at the provider's done marker or after
// GraceIdle with no fragment arrivals, whichever comes first.
//
// When the recording ceiling already stopped the take automatically, Stop
// hands over that stop's result instead.
func (c *Coordinator) Stop(ctx context.Context) (*Recording, error) {
	c.mu.Lock()
	if done := c.stopDone; done != nil {
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		rec, err := c.pending, c.pendingErr
		c.pending, c.pendingErr = nil, nil
		state := c.state
		c.mu.Unlock()
		if rec == nil && err == nil {
			return nil, invalidState("stop", state)
		}
		return rec, err
	}
	if c.state != StateRecording {
		defer c.mu.Unlock()
		return nil, invalidState("stop", c.state)
	}
	c.state = StateStopped
	session := c.session
	liveDown := c.liveDown
	group := c.group
	c.mu.Unlock()

	c.releaseStream()
	return c.finish(ctx, session, liveDown, group)
}

// autoStop runs the stop sequence when the ceiling is reached, stashing the
// assembled recording for a later Stop call to collect.
func (c *Coordinator) autoStop() {
	c.mu.Lock()
	if c.state != StateRecording || c.stopDone != nil {
		// Stopped or cancelled in the meantime.
		c.mu.Unlock()
		return
	}
	c.state = StateStopped
	c.stopDone = make(chan struct{})
	done := c.stopDone
	session := c.session
	liveDown := c.liveDown
	group := c.group
	c.mu.Unlock()

	rec, err := c.finish(context.Background(), session, liveDown, group)
	c.mu.Lock()
	c.pending, c.pendingErr = rec, err
	c.mu.Unlock()
	close(done)
}

// finish drains and closes the live channel, waits out the pump, and
// assembles the [Recording]. The caller has already moved the state to
// [StateStopped] and released the device.
func (c *Coordinator) finish(ctx context.Context, session stt.SessionHandle, liveDown bool, group *errgroup.Group) (*Recording, error) {
	if session != nil && !liveDown {
		c.awaitStreamDrain(ctx, session)
	}
	if session != nil {
		c.closeSession(session)
	}

	pumpErr := group.Wait()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.AddActiveRecordings(ctx, -1)
	}

	c.mu.Lock()
	duration := c.elapsed
	live := joinTranscript(c.finals, c.interim)
	enc := c.enc
	c.mu.Unlock()

	if pumpErr != nil {
		c.fail(pumpErr)
		return nil, pumpErr
	}
	if duration < c.cfg.MinDuration {
		err := fmt.Errorf("%w: %s captured, need at least %s",
			ErrRecordingTooShort, duration, c.cfg.MinDuration)
		c.fail(err)
		return nil, err
	}

	blob, err := enc.Finalize()
	if err != nil {
		err = fmt.Errorf("finalize recording: %w", err)
		c.fail(err)
		return nil, err
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordCaptureDuration(ctx, duration)
	}
	c.cfg.Logger.Info("recording stopped",
		"duration", duration,
		"container", enc.MIME(),
		"bytes", len(blob),
		"live_chars", len(live))

	return &Recording{
		Audio:          blob,
		MIME:           enc.MIME(),
		Duration:       duration,
		LiveTranscript: live,
	}, nil
}

// awaitStreamDrain blocks until the session signals done, no fragment has
// arrived for GraceIdle, or ctx is cancelled.
func (c *Coordinator) awaitStreamDrain(ctx context.Context, session stt.SessionHandle) {
	c.mu.Lock()
	activity := c.activity
	c.mu.Unlock()

	idle := time.NewTimer(c.cfg.GraceIdle)
	defer idle.Stop()
	for {
		select {
		case <-session.Done():
			return
		case <-activity:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(c.cfg.GraceIdle)
		case <-idle.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Cancel abandons the take and releases every resource: the device's
// hardware track first, then the streaming channel. Captured data is
// discarded and the coordinator returns to [StateIdle]. Cancelling an idle
// or terminal coordinator is a no-op.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateDone, StateError:
		c.mu.Unlock()
		return nil
	}
	session := c.session
	group := c.group
	wasRecording := c.state == StateRecording
	c.state = StateIdle
	c.mu.Unlock()

	c.releaseStream()
	if session != nil {
		c.closeSession(session)
	}
	if group != nil {
		_ = group.Wait()
	}
	if wasRecording && c.cfg.Metrics != nil {
		c.cfg.Metrics.AddActiveRecordings(context.Background(), -1)
	}

	c.mu.Lock()
	c.stream = nil
	c.session = nil
	c.enc = nil
	c.elapsed = 0
	c.finals = nil
	c.interim = ""
	c.lastErr = nil
	c.group = nil
	c.stopDone = nil
	c.pending = nil
	c.pendingErr = nil
	c.mu.Unlock()

	c.cfg.Logger.Info("recording cancelled")
	return nil
}

// BeginAnalysis moves a stopped coordinator into [StateAnalyzing].
func (c *Coordinator) BeginAnalysis() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return invalidState("analyze", c.state)
	}
	c.state = StateAnalyzing
	return nil
}

// FinishAnalysis resolves [StateAnalyzing] into done or error.
func (c *Coordinator) FinishAnalysis(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateError
		c.lastErr = err
		return
	}
	c.state = StateDone
}

func (c *Coordinator) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateError
	c.lastErr = err
}

func (c *Coordinator) releaseStream() {
	c.mu.Lock()
	stream := c.stream
	done := c.released
	c.released = true
	c.mu.Unlock()
	if stream == nil || done {
		return
	}
	if err := stream.Release(); err != nil {
		c.cfg.Logger.Warn("device release failed", "error", err)
	}
}

func (c *Coordinator) closeSession(session stt.SessionHandle) {
	c.mu.Lock()
	done := c.sessionClosed
	c.sessionClosed = true
	c.mu.Unlock()
	if done {
		return
	}
	if err := session.Close(); err != nil {
		c.cfg.Logger.Warn("live transcription close failed", "error", err)
	}
}
