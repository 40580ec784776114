package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/orato-voice/orato/pkg/types"
)

// WAVEncoder writes 16-bit PCM into a RIFF/WAVE container. It is the
// always-available fallback container: every input format can be stored
// without transcoding.
type WAVEncoder struct {
	format    Format
	pcm       bytes.Buffer
	finalized bool
}

var _ Encoder = (*WAVEncoder)(nil)

// NewWAVEncoder creates a [WAVEncoder] for PCM input in format f.
func NewWAVEncoder(f Format) *WAVEncoder {
	return &WAVEncoder{format: f}
}

// MIME implements [Encoder].
func (e *WAVEncoder) MIME() string { return MIMEWAV }

// WriteFrame implements [Encoder].
func (e *WAVEncoder) WriteFrame(frame types.AudioFrame) error {
	if e.finalized {
		return errors.New("wav: encoder already finalized")
	}
	if frame.SampleRate != e.format.SampleRate || frame.Channels != e.format.Channels {
		return fmt.Errorf("wav: frame format %s does not match encoder format %s",
			Format{frame.SampleRate, frame.Channels}, e.format)
	}
	e.pcm.Write(frame.Data)
	return nil
}

// Finalize implements [Encoder]. It prepends the RIFF header and returns the
// complete file contents.
func (e *WAVEncoder) Finalize() ([]byte, error) {
	if e.finalized {
		return nil, errors.New("wav: encoder already finalized")
	}
	e.finalized = true

	data := e.pcm.Bytes()
	var out bytes.Buffer
	out.Grow(44 + len(data))

	byteRate := e.format.SampleRate * e.format.Channels * 2
	blockAlign := e.format.Channels * 2

	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(36+len(data)))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	binary.Write(&out, binary.LittleEndian, uint32(16))
	binary.Write(&out, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&out, binary.LittleEndian, uint16(e.format.Channels))
	binary.Write(&out, binary.LittleEndian, uint32(e.format.SampleRate))
	binary.Write(&out, binary.LittleEndian, uint32(byteRate))
	binary.Write(&out, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&out, binary.LittleEndian, uint16(16)) // bits per sample

	out.WriteString("data")
	binary.Write(&out, binary.LittleEndian, uint32(len(data)))
	out.Write(data)

	return out.Bytes(), nil
}

// DecodeWAV parses a RIFF/WAVE file produced by [WAVEncoder] (PCM, 16-bit)
// and returns the raw sample data and its format. Used by local transcription
// backends that consume PCM directly.
func DecodeWAV(b []byte) (pcm []byte, f Format, err error) {
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("wav: not a RIFF/WAVE file")
	}

	// Walk the chunk list; fmt must precede data.
	pos := 12
	var haveFmt bool
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(b) {
			return nil, Format{}, errors.New("wav: truncated chunk")
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, errors.New("wav: short fmt chunk")
			}
			if audioFormat := binary.LittleEndian.Uint16(b[body : body+2]); audioFormat != 1 {
				return nil, Format{}, fmt.Errorf("wav: unsupported audio format %d (want PCM)", audioFormat)
			}
			f.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			if bits := binary.LittleEndian.Uint16(b[body+14 : body+16]); bits != 16 {
				return nil, Format{}, fmt.Errorf("wav: unsupported bit depth %d (want 16)", bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, errors.New("wav: data chunk before fmt chunk")
			}
			return b[body : body+size], f, nil
		}

		// Chunks are word-aligned.
		pos = body + size + size%2
	}
	return nil, Format{}, errors.New("wav: no data chunk")
}
