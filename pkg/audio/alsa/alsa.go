// Package alsa captures PCM audio from a local input device by running
// arecord and reading raw little-endian samples from its stdout.
//
// Shelling out keeps the module free of cgo audio bindings while still
// reading from the machine's real microphone. The capture command can be
// overridden, so any program that writes raw PCM to stdout (parec, ffmpeg,
// sox) works as a drop-in source.
package alsa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/orato-voice/orato/pkg/audio"
	"github.com/orato-voice/orato/pkg/types"
)

// frameInterval is the duration of PCM covered by one emitted frame.
const frameInterval = 20 * time.Millisecond

// Device is an [audio.Device] backed by an arecord subprocess.
type Device struct {
	name    string
	format  audio.Format
	command []string
	log     *slog.Logger
}

var _ audio.Device = (*Device)(nil)

// Option configures a [Device].
type Option func(*Device)

// WithCommand replaces the arecord invocation with an arbitrary program that
// writes raw PCM in the device's format to stdout.
func WithCommand(name string, args ...string) Option {
	return func(d *Device) {
		d.command = append([]string{name}, args...)
	}
}

// WithLogger sets the logger for capture lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// New creates a device reading from the named ALSA input (e.g. "default" or
// "hw:1,0") in the given format. An empty name selects "default".
func New(name string, f audio.Format, opts ...Option) *Device {
	if name == "" {
		name = "default"
	}
	d := &Device{name: name, format: f, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open implements [audio.Device]. The subprocess keeps running until
// [audio.CaptureStream.Release] is called; ctx only bounds the launch.
func (d *Device) Open(ctx context.Context) (audio.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	argv := d.command
	if len(argv) == 0 {
		argv = []string{
			"arecord", "-q",
			"-D", d.name,
			"-f", "S16_LE",
			"-r", strconv.Itoa(d.format.SampleRate),
			"-c", strconv.Itoa(d.format.Channels),
			"-t", "raw",
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("alsa: pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, startError(err)
	}

	s := &stream{
		format: d.format,
		cmd:    cmd,
		stdout: stdout,
		stderr: &stderr,
		frames: make(chan types.AudioFrame, 16),
		quit:   make(chan struct{}),
		log:    d.log,
	}
	go s.pump()

	d.log.Debug("capture subprocess started", "device", d.name, "command", argv[0])
	return s, nil
}

// startError maps subprocess launch failures onto the audio sentinels.
func startError(err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("alsa: start capture: %w", err)
	}
}

// stream is the live capture handle for one subprocess. The pump goroutine
// is the only closer of the frame channel; Release signals it via quit and
// kills the subprocess so the pending read returns.
type stream struct {
	format audio.Format
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *strings.Builder
	frames chan types.AudioFrame
	quit   chan struct{}
	log    *slog.Logger

	releaseOnce sync.Once
	waitOnce    sync.Once
	waitErr     error
}

var _ audio.CaptureStream = (*stream)(nil)

func (s *stream) Frames() <-chan types.AudioFrame { return s.frames }

func (s *stream) Format() audio.Format { return s.format }

// Release implements [audio.CaptureStream]. Safe to call more than once.
// The pump goroutine reaps the subprocess.
func (s *stream) Release() error {
	s.releaseOnce.Do(func() {
		close(s.quit)
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
	return nil
}

func (s *stream) released() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// pump reads fixed-size PCM chunks from the subprocess and emits them as
// frames until stdout closes or the stream is released.
func (s *stream) pump() {
	defer func() {
		s.wait()
		close(s.frames)
	}()

	frameBytes := s.format.SampleRate * s.format.Channels * 2 *
		int(frameInterval.Milliseconds()) / 1000
	buf := make([]byte, frameBytes)
	var elapsed time.Duration

	for {
		n, err := io.ReadFull(s.stdout, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			frame := types.AudioFrame{
				Data:       data,
				SampleRate: s.format.SampleRate,
				Channels:   s.format.Channels,
				Timestamp:  elapsed,
			}
			elapsed += frameInterval * time.Duration(n) / time.Duration(frameBytes)

			select {
			case s.frames <- frame:
			case <-s.quit:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !s.released() {
				s.log.Warn("capture read failed", "err", err)
			}
			break
		}
	}

	s.wait()
	if !s.released() && s.waitErr != nil {
		s.log.Warn("capture subprocess exited",
			"err", s.waitErr,
			"stderr", strings.TrimSpace(s.stderr.String()),
		)
	}
}

func (s *stream) wait() {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
}
