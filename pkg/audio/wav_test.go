package audio

import (
	"bytes"
	"testing"

	"github.com/orato-voice/orato/pkg/types"
)

func TestWAVEncoderRoundTrip(t *testing.T) {
	f := Format{SampleRate: 16000, Channels: 1}
	enc := NewWAVEncoder(f)

	pcm := int16sToBytes([]int16{0, 1000, -1000, 32767, -32768})
	err := enc.WriteFrame(types.AudioFrame{Data: pcm, SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	blob, err := enc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !bytes.HasPrefix(blob, []byte("RIFF")) {
		t.Fatalf("missing RIFF magic, got %q", blob[:4])
	}

	got, gotF, err := DecodeWAV(blob)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if gotF != f {
		t.Errorf("format = %v, want %v", gotF, f)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("decoded PCM differs from input")
	}
}

func TestWAVEncoderRejectsFormatMismatch(t *testing.T) {
	enc := NewWAVEncoder(Format{SampleRate: 16000, Channels: 1})
	err := enc.WriteFrame(types.AudioFrame{Data: make([]byte, 4), SampleRate: 48000, Channels: 2})
	if err == nil {
		t.Fatal("expected error for mismatched frame format")
	}
}

func TestWAVEncoderSingleUse(t *testing.T) {
	enc := NewWAVEncoder(Format{SampleRate: 16000, Channels: 1})
	if _, err := enc.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if _, err := enc.Finalize(); err == nil {
		t.Fatal("second Finalize should fail")
	}
	if err := enc.WriteFrame(types.AudioFrame{SampleRate: 16000, Channels: 1}); err == nil {
		t.Fatal("WriteFrame after Finalize should fail")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"too short": []byte("RIFF"),
		"not riff":  bytes.Repeat([]byte{0xab}, 64),
	}
	for name, b := range cases {
		if _, _, err := DecodeWAV(b); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
