package fftingest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
)

// magic is the four-byte tag "FFTD" (0x46465444) that opens every frame.
var magic = [4]byte{'F', 'F', 'T', 'D'}

var (
	errBadMagic = errors.New("fftingest: bad magic")
	errBadSize  = errors.New("fftingest: size mismatch")
	errBadMeta  = errors.New("fftingest: malformed metadata")
)

const headerLen = 4 + 4 + 4 // magic + meta_len + fft_size

// Parse decodes one FFT datagram. Datagrams failing the magic check, or
// whose total size doesn't match 12+meta_len+4*fft_size exactly, are
// rejected (spec.md §4.B).
func Parse(datagram []byte) (FFTPacket, error) {
	if len(datagram) < headerLen {
		return FFTPacket{}, errBadSize
	}
	if datagram[0] != magic[0] || datagram[1] != magic[1] || datagram[2] != magic[2] || datagram[3] != magic[3] {
		return FFTPacket{}, errBadMagic
	}

	metaLen := binary.LittleEndian.Uint32(datagram[4:8])
	fftSize := binary.LittleEndian.Uint32(datagram[8:12])

	wantLen := headerLen + int(metaLen) + 4*int(fftSize)
	if len(datagram) != wantLen {
		return FFTPacket{}, errBadSize
	}

	var m meta
	if err := json.Unmarshal(datagram[headerLen:headerLen+int(metaLen)], &m); err != nil {
		return FFTPacket{}, errBadMeta
	}

	magStart := headerLen + int(metaLen)
	mags := make([]float32, fftSize)
	for i := 0; i < int(fftSize); i++ {
		bits := binary.LittleEndian.Uint32(datagram[magStart+4*i : magStart+4*i+4])
		mags[i] = math.Float32frombits(bits)
	}

	return FFTPacket{
		SourceIndex: m.SourceIndex,
		CenterFreq:  m.CenterFreq,
		SampleRate:  m.SampleRate,
		TimestampMs: m.TimestampMs,
		FFTSize:     int(fftSize),
		MinFreq:     m.MinFreq,
		MaxFreq:     m.MaxFreq,
		Magnitudes:  mags,
	}, nil
}
