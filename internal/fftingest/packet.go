// Package fftingest binds the UDP FFT socket and parses the fixed binary
// frame format into FFTPackets (spec.md §4.B).
package fftingest

import (
	"encoding/binary"
	"math"
)

// FFTPacket is one parsed spectrum frame.
type FFTPacket struct {
	SourceIndex int
	CenterFreq  int64
	SampleRate  int
	TimestampMs int64
	FFTSize     int
	MinFreq     int64
	MaxFreq     int64
	Magnitudes  []float32
}

type meta struct {
	SourceIndex int   `json:"source_index"`
	CenterFreq  int64 `json:"center_freq"`
	SampleRate  int   `json:"sample_rate"`
	TimestampMs int64 `json:"timestamp_ms"`
	MinFreq     int64 `json:"min_freq"`
	MaxFreq     int64 `json:"max_freq"`
}

// EncodeMagnitudes serializes magnitudes as float32 LE, the payload format
// the broadcast hub forwards for "fft" binary frames (spec.md §4.G).
func EncodeMagnitudes(magnitudes []float32) []byte {
	buf := make([]byte, 4*len(magnitudes))
	for i, m := range magnitudes {
		binary.LittleEndian.PutUint32(buf[4*i:4*i+4], math.Float32bits(m))
	}
	return buf
}
