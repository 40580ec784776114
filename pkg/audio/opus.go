package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"layeh.com/gopus"

	"github.com/orato-voice/orato/pkg/types"
)

// Opus frames are 20 ms. Granule positions in an Ogg Opus stream count
// samples at 48 kHz regardless of the input rate (RFC 7845 §4).
const (
	opusFrameMs         = 20
	opusGranulePerFrame = 48000 * opusFrameMs / 1000 // 960
	opusMaxPacketBytes  = 4000
	opusEncoderPreSkip  = 312
)

// OggOpusEncoder encodes 16-bit PCM into an Ogg Opus container using gopus.
// Input is buffered into 20 ms frames; a trailing partial frame is
// zero-padded at Finalize.
type OggOpusEncoder struct {
	format     Format
	enc        *gopus.Encoder
	ogg        oggWriter
	pending    bytes.Buffer
	frameSize  int // samples per channel per 20 ms frame
	granule    uint64
	eosWritten bool
	finalized  bool
}

var _ Encoder = (*OggOpusEncoder)(nil)

// NewOggOpusEncoder creates an encoder for PCM input in format f. The sample
// rate must be one Opus supports natively (8, 12, 16, 24, or 48 kHz) and the
// channel count 1 or 2.
func NewOggOpusEncoder(f Format) (*OggOpusEncoder, error) {
	switch f.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("opus: unsupported sample rate %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return nil, fmt.Errorf("opus: unsupported channel count %d", f.Channels)
	}

	enc, err := gopus.NewEncoder(f.SampleRate, f.Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("opus: create encoder: %w", err)
	}

	e := &OggOpusEncoder{
		format:    f,
		enc:       enc,
		frameSize: f.SampleRate * opusFrameMs / 1000,
	}
	e.writeHeaders()
	return e, nil
}

// MIME implements [Encoder].
func (e *OggOpusEncoder) MIME() string { return MIMEOggOpus }

// writeHeaders emits the OpusHead and OpusTags packets on their own pages.
func (e *OggOpusEncoder) writeHeaders() {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1 // version
	head[9] = byte(e.format.Channels)
	binary.LittleEndian.PutUint16(head[10:], opusEncoderPreSkip)
	binary.LittleEndian.PutUint32(head[12:], uint32(e.format.SampleRate))
	// output gain 0, mapping family 0
	e.ogg.writePage(head, 0, oggHeaderTypeBOS)

	vendor := "orato"
	tags := make([]byte, 0, 8+4+len(vendor)+4)
	tags = append(tags, "OpusTags"...)
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len(vendor)))
	tags = append(tags, vendor...)
	tags = binary.LittleEndian.AppendUint32(tags, 0) // no user comments
	e.ogg.writePage(tags, 0, 0)
}

// WriteFrame implements [Encoder].
func (e *OggOpusEncoder) WriteFrame(frame types.AudioFrame) error {
	if e.finalized {
		return errors.New("opus: encoder already finalized")
	}
	if frame.SampleRate != e.format.SampleRate || frame.Channels != e.format.Channels {
		return fmt.Errorf("opus: frame format %s does not match encoder format %s",
			Format{frame.SampleRate, frame.Channels}, e.format)
	}
	e.pending.Write(frame.Data)
	return e.drain(false)
}

// drain encodes as many complete 20 ms frames as are buffered. When final is
// true, a trailing partial frame is zero-padded and flushed too.
func (e *OggOpusEncoder) drain(final bool) error {
	frameBytes := e.frameSize * e.format.Channels * 2
	for e.pending.Len() >= frameBytes {
		if err := e.encodeFrame(e.pending.Next(frameBytes), false); err != nil {
			return err
		}
	}
	if final && e.pending.Len() > 0 {
		padded := make([]byte, frameBytes)
		copy(padded, e.pending.Next(e.pending.Len()))
		return e.encodeFrame(padded, true)
	}
	return nil
}

func (e *OggOpusEncoder) encodeFrame(pcmBytes []byte, last bool) error {
	pcm := bytesToInt16s(pcmBytes)
	packet, err := e.enc.Encode(pcm, e.frameSize, opusMaxPacketBytes)
	if err != nil {
		return fmt.Errorf("opus: encode: %w", err)
	}
	e.granule += opusGranulePerFrame
	var flags byte
	if last {
		flags = oggHeaderTypeEOS
		e.eosWritten = true
	}
	e.ogg.writePage(packet, e.granule, flags)
	return nil
}

// Finalize implements [Encoder].
func (e *OggOpusEncoder) Finalize() ([]byte, error) {
	if e.finalized {
		return nil, errors.New("opus: encoder already finalized")
	}
	e.finalized = true

	if err := e.drain(true); err != nil {
		return nil, err
	}
	if !e.eosWritten {
		// The take ended exactly on a frame boundary, or carried no audio at
		// all; close the logical bitstream with an empty EOS page so the
		// container stays well-formed.
		e.ogg.writePage(nil, e.granule, oggHeaderTypeEOS)
	}
	return e.ogg.bytes(), nil
}

// bytesToInt16s reinterprets little-endian PCM bytes as int16 samples.
func bytesToInt16s(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// int16sToBytes converts int16 samples back to little-endian PCM bytes.
func int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
