package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidWAV is returned for payloads that are not PCM16 RIFF/WAVE.
var ErrInvalidWAV = errors.New("media: invalid WAV payload")

const wavHeaderSize = 44

// PCM is interleaved 16-bit little-endian audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// EncodeWAV frames PCM16 samples as a canonical 44-byte-header WAV file.
func EncodeWAV(p PCM) []byte {
	dataLen := len(p.Samples) * 2
	byteRate := p.SampleRate * p.Channels * 2

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataLen))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(p.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(p.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(p.Channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(buf, binary.LittleEndian, p.Samples)
	return buf.Bytes()
}

// DecodeWAV parses a PCM16 WAV file, skipping unknown chunks.
func DecodeWAV(b []byte) (PCM, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return PCM{}, ErrInvalidWAV
	}

	var (
		p      PCM
		gotFmt bool
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(b) {
			size = len(b) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, ErrInvalidWAV
			}
			if format := binary.LittleEndian.Uint16(b[body:]); format != 1 {
				return PCM{}, fmt.Errorf("%w: unsupported format %d", ErrInvalidWAV, format)
			}
			p.Channels = int(binary.LittleEndian.Uint16(b[body+2:]))
			p.SampleRate = int(binary.LittleEndian.Uint32(b[body+4:]))
			if bits := binary.LittleEndian.Uint16(b[body+14:]); bits != 16 {
				return PCM{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bits)
			}
			gotFmt = true
		case "data":
			if !gotFmt {
				return PCM{}, ErrInvalidWAV
			}
			p.Samples = make([]int16, size/2)
			for i := range p.Samples {
				p.Samples[i] = int16(binary.LittleEndian.Uint16(b[body+i*2:]))
			}
			return p, nil
		}

		pos = body + size + size%2
	}
	return PCM{}, ErrInvalidWAV
}
