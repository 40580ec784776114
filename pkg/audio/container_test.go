package audio

import (
	"bytes"
	"testing"

	"github.com/orato-voice/orato/pkg/types"
)

func TestNewPreferredEncoderPicksOggOpus(t *testing.T) {
	enc, err := NewPreferredEncoder(Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewPreferredEncoder: %v", err)
	}
	if enc.MIME() != MIMEOggOpus {
		t.Errorf("MIME = %q, want %q", enc.MIME(), MIMEOggOpus)
	}
}

func TestNewPreferredEncoderFallsBackToWAV(t *testing.T) {
	// 44.1 kHz is not an Opus rate, so the Ogg candidate fails construction.
	enc, err := NewPreferredEncoder(Format{SampleRate: 44100, Channels: 1})
	if err != nil {
		t.Fatalf("NewPreferredEncoder: %v", err)
	}
	if enc.MIME() != MIMEWAV {
		t.Errorf("MIME = %q, want %q", enc.MIME(), MIMEWAV)
	}
}

func TestSupported(t *testing.T) {
	if Supported(MIMEWebMOpus) {
		t.Error("webm should have no local encoder")
	}
	if !Supported(MIMEWAV) || !Supported(MIMEOggOpus) {
		t.Error("wav and ogg/opus should be supported")
	}
}

func TestOggOpusEncoderProducesOggStream(t *testing.T) {
	enc, err := NewOggOpusEncoder(Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewOggOpusEncoder: %v", err)
	}

	// 100 ms of silence.
	err = enc.WriteFrame(types.AudioFrame{
		Data:       make([]byte, 16000/10*2),
		SampleRate: 16000,
		Channels:   1,
	})
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	blob, err := enc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !bytes.HasPrefix(blob, []byte("OggS")) {
		t.Fatal("output does not start with an Ogg capture pattern")
	}
	if !bytes.Contains(blob, []byte("OpusHead")) || !bytes.Contains(blob, []byte("OpusTags")) {
		t.Error("output is missing Opus header packets")
	}
}

// lastOggPageFlags walks the Ogg page sequence and returns the header-type
// flags of the final page.
func lastOggPageFlags(t *testing.T, blob []byte) byte {
	t.Helper()
	var flags byte
	for off := 0; off < len(blob); {
		if off+27 > len(blob) || !bytes.Equal(blob[off:off+4], []byte("OggS")) {
			t.Fatalf("malformed page header at offset %d", off)
		}
		flags = blob[off+5]
		nSeg := int(blob[off+26])
		size := 27 + nSeg
		for i := 0; i < nSeg; i++ {
			size += int(blob[off+27+i])
		}
		off += size
	}
	return flags
}

func TestOggOpusEncoderTerminatesStream(t *testing.T) {
	tests := []struct {
		name string
		ms   int
	}{
		{"exact frame boundary", 100},
		{"trailing partial frame", 110},
		{"no audio", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewOggOpusEncoder(Format{SampleRate: 16000, Channels: 1})
			if err != nil {
				t.Fatalf("NewOggOpusEncoder: %v", err)
			}
			if tt.ms > 0 {
				err = enc.WriteFrame(types.AudioFrame{
					Data:       make([]byte, 16000*tt.ms/1000*2),
					SampleRate: 16000,
					Channels:   1,
				})
				if err != nil {
					t.Fatalf("WriteFrame: %v", err)
				}
			}
			blob, err := enc.Finalize()
			if err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			if flags := lastOggPageFlags(t, blob); flags&oggHeaderTypeEOS == 0 {
				t.Errorf("last page flags = %#x, want the EOS bit set", flags)
			}
		})
	}
}

func TestOggOpusEncoderRejectsBadRate(t *testing.T) {
	if _, err := NewOggOpusEncoder(Format{SampleRate: 22050, Channels: 1}); err == nil {
		t.Fatal("expected error for non-Opus sample rate")
	}
}
