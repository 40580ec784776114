package audio

import (
	"bytes"
	"encoding/binary"
)

// Minimal Ogg page writer, enough to encapsulate an Opus packet stream
// (RFC 3533 framing, RFC 7845 packet layout). Each packet is written on its
// own page, which keeps segmentation trivial at the cost of a little
// overhead — irrelevant for recordings measured in minutes.

const (
	oggHeaderTypeContinued = 0x01
	oggHeaderTypeBOS       = 0x02
	oggHeaderTypeEOS       = 0x04
)

// oggCRCTable is the CRC-32 lookup table for Ogg paging (polynomial
// 0x04c11db7, no bit reflection, zero initial value and final XOR).
var oggCRCTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func oggCRC(b []byte) uint32 {
	var crc uint32
	for _, v := range b {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^v]
	}
	return crc
}

// oggWriter frames packets into Ogg pages for a single logical bitstream.
type oggWriter struct {
	buf    bytes.Buffer
	serial uint32
	seq    uint32
}

// writePage writes one packet as a complete Ogg page with the given granule
// position and header type flags.
func (w *oggWriter) writePage(packet []byte, granule uint64, headerType byte) {
	// Lacing values: 255 for each full 255-byte run, then the remainder.
	nSegments := len(packet)/255 + 1

	header := make([]byte, 27+nSegments)
	copy(header, "OggS")
	header[5] = headerType
	binary.LittleEndian.PutUint64(header[6:], granule)
	binary.LittleEndian.PutUint32(header[14:], w.serial)
	binary.LittleEndian.PutUint32(header[18:], w.seq)
	// header[22:26] crc, filled below
	header[26] = byte(nSegments)

	remaining := len(packet)
	for i := range nSegments {
		if remaining >= 255 {
			header[27+i] = 255
			remaining -= 255
		} else {
			header[27+i] = byte(remaining)
		}
	}

	crc := oggCRC(header)
	for _, v := range packet {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^v]
	}
	binary.LittleEndian.PutUint32(header[22:], crc)

	w.buf.Write(header)
	w.buf.Write(packet)
	w.seq++
}

func (w *oggWriter) bytes() []byte { return w.buf.Bytes() }
