package recwatcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompanionWav(t *testing.T) {
	got := companionWav("/audio/927-1704825600.json")
	want := "/audio/927-1704825600.wav"
	if got != want {
		t.Errorf("companionWav = %q, want %q", got, want)
	}
}

func TestProcessSkipsWhenWavMissing(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "927-1704825600.json")
	if err := os.WriteFile(jsonPath, []byte(`{"talkgroup":927,"freq":851150000}`), 0644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	var got []Completion
	w := New(dir, zerolog.Nop())
	w.Sink = func(c Completion) { got = append(got, c) }

	w.process(jsonPath)

	if len(got) != 0 {
		t.Errorf("expected no completion without companion wav, got %d", len(got))
	}
	if w.filesSkipped.Load() != 1 {
		t.Errorf("filesSkipped = %d, want 1", w.filesSkipped.Load())
	}
}

// Re-delivering the same sidecar twice results in at most one emitted
// completion, per spec.md §8's idempotence law.
func TestProcessIdempotentOnDuplicateSidecar(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "927-1704825600.json")
	wavPath := filepath.Join(dir, "927-1704825600.wav")

	if err := os.WriteFile(jsonPath, []byte(`{"talkgroup":927,"freq":851150000,"start_time":1704825600,"stop_time":1704825610}`), 0644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	if err := os.WriteFile(wavPath, []byte("RIFF....WAVEfmt "), 0644); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	var got []Completion
	w := New(dir, zerolog.Nop())
	w.Sink = func(c Completion) { got = append(got, c) }

	w.process(jsonPath)
	w.process(jsonPath)

	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if got[0].Sidecar.Talkgroup != 927 {
		t.Errorf("Talkgroup = %d, want 927", got[0].Sidecar.Talkgroup)
	}
	if w.filesProcessed.Load() != 1 {
		t.Errorf("filesProcessed = %d, want 1", w.filesProcessed.Load())
	}
}
