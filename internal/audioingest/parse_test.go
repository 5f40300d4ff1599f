package audioingest

import (
	"encoding/binary"
	"encoding/json"
	"testing"
)

func datagramFormat1(meta map[string]any, pcm []byte) []byte {
	body, _ := json.Marshal(meta)
	out := make([]byte, 4+len(body)+len(pcm))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	copy(out[4+len(body):], pcm)
	return out
}

func TestParseFormat1(t *testing.T) {
	pcm := make([]byte, 1600)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	dg := datagramFormat1(map[string]any{
		"talkgroup":         927,
		"freq":              852387500,
		"audio_sample_rate": 8000,
	}, pcm)

	f, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Talkgroup != 927 {
		t.Errorf("Talkgroup = %d, want 927", f.Talkgroup)
	}
	if f.Frequency != 852387500 {
		t.Errorf("Frequency = %d, want 852387500", f.Frequency)
	}
	if len(f.PCM) != 1600 {
		t.Errorf("len(PCM) = %d, want 1600", len(f.PCM))
	}
}

func TestParseFormat4TalkgroupOnly(t *testing.T) {
	dg := make([]byte, 4+12)
	binary.LittleEndian.PutUint32(dg[:4], 12345)

	f, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Talkgroup != 12345 {
		t.Errorf("Talkgroup = %d, want 12345", f.Talkgroup)
	}
	if len(f.PCM) != 12 {
		t.Errorf("len(PCM) = %d, want 12", len(f.PCM))
	}
}

func TestParseEmbeddedAtOffset4(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"talkgroup": 500})
	dg := make([]byte, 4+len(body)+10)
	dg[0], dg[1], dg[2], dg[3] = 0xff, 0xff, 0xff, 0xff // unusable 4-byte prefix
	copy(dg[4:], body)

	f, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Talkgroup != 500 {
		t.Errorf("Talkgroup = %d, want 500", f.Talkgroup)
	}
}

func TestParseRawJSONAtOffset0(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"tgid": 42})
	dg := append([]byte{}, body...)
	dg = append(dg, []byte("pcmbytes")...)

	f, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Talkgroup != 42 {
		t.Errorf("Talkgroup = %d, want 42", f.Talkgroup)
	}
	if string(f.PCM) != "pcmbytes" {
		t.Errorf("PCM = %q, want pcmbytes", f.PCM)
	}
}

// Boundary: first 4-byte value = 0 is a format-4 fallback with talkgroup 0,
// not a JSON-length overflow (spec.md §8).
func TestBoundaryLengthZeroFallsBackToFormat4(t *testing.T) {
	dg := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(dg[:4], 0)

	f, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Talkgroup != 0 {
		t.Errorf("Talkgroup = %d, want 0", f.Talkgroup)
	}
	if len(f.PCM) != 8 {
		t.Errorf("len(PCM) = %d, want 8", len(f.PCM))
	}
}

// Boundary: L=9999 with total datagram length 9999+4 is a valid format 1.
func TestBoundaryLength9999Valid(t *testing.T) {
	const target = 9999

	prefix := `{"talkgroup":1,"pad":"`
	suffix := `"}`
	padLen := target - len(prefix) - len(suffix)
	if padLen < 0 {
		t.Fatalf("prefix+suffix longer than target")
	}
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = 'x'
	}
	body := append([]byte(prefix), pad...)
	body = append(body, []byte(suffix)...)
	if len(body) != target {
		t.Fatalf("constructed body length = %d, want %d", len(body), target)
	}

	dg := make([]byte, 4+target)
	binary.LittleEndian.PutUint32(dg[:4], uint32(target))
	copy(dg[4:], body)

	f, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Talkgroup != 1 {
		t.Errorf("Talkgroup = %d, want 1", f.Talkgroup)
	}
	if len(f.PCM) != 0 {
		t.Errorf("len(PCM) = %d, want 0 (JSON consumed whole datagram)", len(f.PCM))
	}
}

// Boundary: L=10000 is rejected as format 1; format 4 is taken instead.
func TestBoundaryLength10000RejectsFormat1(t *testing.T) {
	dg := make([]byte, 4+20)
	binary.LittleEndian.PutUint32(dg[:4], 10000)

	f, err := Parse(dg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Talkgroup != 10000 {
		t.Errorf("Talkgroup = %d, want 10000 (format-4 fallback)", f.Talkgroup)
	}
}

func TestMalformedDatagramTooShort(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02})
	if err == nil {
		t.Error("expected error for too-short datagram")
	}
}

// Round-trip law: parsing a format-1 datagram, re-emitting it with the same
// metadata and PCM, and parsing again yields the same AudioFrame fields.
func TestRoundTripFormat1Idempotent(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5}
	meta := map[string]any{"talkgroup": float64(927), "freq": float64(851000000)}

	dg1 := datagramFormat1(meta, pcm)
	f1, err := Parse(dg1)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}

	dg2 := datagramFormat1(f1.Meta, f1.PCM)
	f2, err := Parse(dg2)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}

	if f1.Talkgroup != f2.Talkgroup || f1.Frequency != f2.Frequency {
		t.Errorf("re-parsed frame differs: %+v vs %+v", f1, f2)
	}
	if string(f1.PCM) != string(f2.PCM) {
		t.Error("PCM differs across round trip")
	}
}
