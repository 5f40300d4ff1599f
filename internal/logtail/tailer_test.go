package logtail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTailerRingBufferBounded(t *testing.T) {
	tl := New("/nonexistent/primary", "/nonexistent/fallback", 3, zerolog.Nop())
	for i := 0; i < 5; i++ {
		tl.remember(Event{Kind: KindGrant, Raw: "line"})
	}
	if got := len(tl.Recent()); got != 3 {
		t.Errorf("len(Recent()) = %d, want 3", got)
	}
}

// Scenario 5: the tailed file is renamed to .1 and replaced by a new,
// initially empty file that then receives a line of its own. The line
// present before Run starts is not replayed, so the first event the tailer
// emits is the new file's line.
func TestTailerRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trunk-recorder.log")

	if err := os.WriteFile(path, []byte("Starting P25 Recorder Num [0] Freq [851150000] Talkgroup [100]\n"), 0644); err != nil {
		t.Fatalf("write initial log: %v", err)
	}

	tl := New("/nonexistent/primary-does-not-exist", path, 200, zerolog.Nop())
	events := make(chan Event, 10)
	tl.Sink = func(e Event) { events <- e }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tl.Run(ctx)

	// Let the tailer open the file and seek to its current end (it should
	// not replay the line already present before Run started).
	time.Sleep(300 * time.Millisecond)

	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := os.WriteFile(path, []byte("Starting P25 Recorder Num [1] Freq [851500000] Talkgroup [200]\n"), 0644); err != nil {
		t.Fatalf("write rotated log: %v", err)
	}

	select {
	case e := <-events:
		if e.RecorderIndex != 1 || e.Talkgroup != 200 {
			t.Errorf("unexpected event after rotation: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post-rotation event")
	}
}
