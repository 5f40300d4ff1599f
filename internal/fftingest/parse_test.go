package fftingest

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
)

func buildDatagram(t *testing.T, m meta, mags []float32) []byte {
	t.Helper()
	body, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}

	out := make([]byte, headerLen+len(body)+4*len(mags))
	copy(out[0:4], magic[:])
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(mags)))
	copy(out[12:], body)

	off := 12 + len(body)
	for i, v := range mags {
		binary.LittleEndian.PutUint32(out[off+4*i:off+4*i+4], math.Float32bits(v))
	}
	return out
}

func TestParseValidFrame(t *testing.T) {
	mags := []float32{-90.5, -45.25, 0, 12.75}
	dg := buildDatagram(t, meta{SourceIndex: 1, CenterFreq: 851000000, SampleRate: 2048000}, mags)

	pkt, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if pkt.FFTSize != len(mags) {
		t.Errorf("FFTSize = %d, want %d", pkt.FFTSize, len(mags))
	}
	if pkt.CenterFreq != 851000000 {
		t.Errorf("CenterFreq = %d, want 851000000", pkt.CenterFreq)
	}
	for i, v := range mags {
		if pkt.Magnitudes[i] != v {
			t.Errorf("Magnitudes[%d] = %v, want %v", i, pkt.Magnitudes[i], v)
		}
	}
}

func TestParseBadMagicDropped(t *testing.T) {
	dg := buildDatagram(t, meta{}, []float32{1})
	dg[0] = 'X'

	_, err := Parse(dg)
	if err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestParseSizeMismatchDropped(t *testing.T) {
	dg := buildDatagram(t, meta{}, []float32{1, 2, 3})
	truncated := dg[:len(dg)-4]

	_, err := Parse(truncated)
	if err == nil {
		t.Error("expected error for size mismatch")
	}
}

func TestParseEmptyMagnitudes(t *testing.T) {
	dg := buildDatagram(t, meta{SourceIndex: 0}, nil)
	pkt, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(pkt.Magnitudes) != 0 {
		t.Errorf("len(Magnitudes) = %d, want 0", len(pkt.Magnitudes))
	}
}
