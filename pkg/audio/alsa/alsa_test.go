package alsa_test

import (
	"errors"
	"testing"
	"time"

	"github.com/orato-voice/orato/pkg/audio"
	"github.com/orato-voice/orato/pkg/audio/alsa"
)

var testFormat = audio.Format{SampleRate: 16000, Channels: 1}

func TestOpenReadsUntilEOF(t *testing.T) {
	t.Parallel()
	// 100 frames of 20 ms mono PCM at 16 kHz.
	dev := alsa.New("default", testFormat,
		alsa.WithCommand("head", "-c", "64000", "/dev/zero"))

	stream, err := dev.Open(t.Context())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Release()

	if got := stream.Format(); got != testFormat {
		t.Errorf("Format: got %+v, want %+v", got, testFormat)
	}

	var total int
	var frames int
	var lastTS time.Duration = -1
	for frame := range stream.Frames() {
		total += len(frame.Data)
		frames++
		if frame.SampleRate != 16000 || frame.Channels != 1 {
			t.Fatalf("frame format: got %d Hz / %d ch", frame.SampleRate, frame.Channels)
		}
		if frame.Timestamp <= lastTS {
			t.Fatalf("timestamps must increase: %v after %v", frame.Timestamp, lastTS)
		}
		lastTS = frame.Timestamp
	}

	if total != 64000 {
		t.Errorf("total bytes: got %d, want 64000", total)
	}
	if frames != 100 {
		t.Errorf("frames: got %d, want 100", frames)
	}
}

func TestOpenUnknownCommand(t *testing.T) {
	t.Parallel()
	dev := alsa.New("default", testFormat,
		alsa.WithCommand("orato-no-such-recorder"))

	_, err := dev.Open(t.Context())
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("Open: got %v, want ErrDeviceUnavailable", err)
	}
}

func TestReleaseStopsEndlessCapture(t *testing.T) {
	t.Parallel()
	dev := alsa.New("default", testFormat,
		alsa.WithCommand("cat", "/dev/zero"))

	stream, err := dev.Open(t.Context())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Consume a little, then hang up while the subprocess is still writing.
	for range 3 {
		select {
		case <-stream.Frames():
		case <-time.After(2 * time.Second):
			t.Fatal("no frame arrived")
		}
	}
	if err := stream.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := stream.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	// The frame channel must close once the pump notices the kill.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame channel did not close after Release")
		}
	}
}
