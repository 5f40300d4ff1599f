package fftrecorder

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestCleanOrphanTempsRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc123.tmp"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "finished"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(dir, zerolog.Nop()); err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "abc123.tmp")); !os.IsNotExist(err) {
		t.Error("expected orphan .tmp removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "finished")); err != nil {
		t.Error("finalized recording should survive orphan cleanup")
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.StartRecording(0.2, "test-recording")
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	mags := []float32{1, 2, 3, 4}
	e.CaptureFFT(851000000, 2048000, 1024, 850000000, 852000000, mags)
	e.CaptureControlEvent("call_start", 927, "Control A2", 851150000)

	if _, err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	rec, err := readRecording(e.dir, id)
	if err != nil {
		t.Fatalf("readRecording: %v", err)
	}
	if rec.Metadata.PacketCount != 1 {
		t.Errorf("PacketCount = %d, want 1", rec.Metadata.PacketCount)
	}
	if rec.Metadata.ControlChannelEvents != 1 {
		t.Errorf("ControlChannelEvents = %d, want 1", rec.Metadata.ControlChannelEvents)
	}
	if len(rec.Packets) != 1 || len(rec.Packets[0].Magnitudes) != len(mags) {
		t.Fatalf("packets mismatch: %+v", rec.Packets)
	}
	for i, m := range rec.Packets[0].Magnitudes {
		if m != mags[i] {
			t.Errorf("magnitude[%d] = %v, want %v", i, m, mags[i])
		}
	}
	if rec.Metadata.FileSize <= 0 {
		t.Error("expected non-zero FileSize")
	}
}

func TestStartRecordingWhileReplayingRejected(t *testing.T) {
	e := newTestEngine(t)

	id := seedRecording(t, e, 3)
	done := make(chan struct{})
	if err := e.StartReplay(id, false, func(Packet) {}, func(ControlEvent) {}, nil); err != nil {
		t.Fatalf("StartReplay: %v", err)
	}
	defer func() {
		e.StopReplay()
		close(done)
	}()

	if _, err := e.StartRecording(1, ""); err != ErrReplayActive {
		t.Errorf("StartRecording during replay = %v, want ErrReplayActive", err)
	}
}

func TestStartReplayWhileRecordingRejected(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.StartRecording(1, ""); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	defer e.StopRecording()

	if err := e.StartReplay("whatever", false, nil, nil, nil); err != ErrRecordingActive {
		t.Errorf("StartReplay during recording = %v, want ErrRecordingActive", err)
	}
}

// seedRecording writes a recording directly to disk with n packets at
// 200ms relative-time spacing and three control events, mirroring the
// 10-second / 50-packet scenario.
func seedRecording(t *testing.T, e *Engine, n int) string {
	t.Helper()
	rec := Recording{
		Metadata: Metadata{ID: "seed", Name: "seed", PacketCount: n},
	}
	for i := 0; i < n; i++ {
		rec.Packets = append(rec.Packets, Packet{
			Timestamp:    int64(i),
			RelativeTime: float64(i) * 0.2,
			Magnitudes:   []float32{float32(i)},
		})
	}
	rec.ControlChannelEvents = []ControlEvent{
		{Kind: "call_start", Talkgroup: 927, RelativeTime: 1.0},
		{Kind: "call_end", Talkgroup: 927, RelativeTime: 5.0},
		{Kind: "call_start", Talkgroup: 928, RelativeTime: 9.0},
	}
	if err := writeAtomic(e.dir, "seed", rec); err != nil {
		t.Fatalf("seed write: %v", err)
	}
	return "seed"
}

func TestReplayTimingMatchesRecordedIntervals(t *testing.T) {
	e := newTestEngine(t)
	id := seedRecording(t, e, 50) // 50 packets * 200ms = ~9.8s to last packet

	var mu sync.Mutex
	var packetTimes []time.Duration
	var controlTimes []time.Duration
	start := time.Now()

	done := make(chan struct{})
	err := e.StartReplay(id, false,
		func(Packet) {
			mu.Lock()
			packetTimes = append(packetTimes, time.Since(start))
			mu.Unlock()
		},
		func(ControlEvent) {
			mu.Lock()
			controlTimes = append(controlTimes, time.Since(start))
			mu.Unlock()
		},
		nil,
	)
	if err != nil {
		t.Fatalf("StartReplay: %v", err)
	}

	go func() {
		e.mu.Lock()
		ar := e.replay
		e.mu.Unlock()
		if ar != nil {
			<-ar.done
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("replay did not finish in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(packetTimes) != 50 {
		t.Fatalf("got %d packets, want 50", len(packetTimes))
	}
	last := packetTimes[len(packetTimes)-1]
	want := 49 * 200 * time.Millisecond
	if diff := last - want; diff > 50*time.Millisecond || diff < -50*time.Millisecond {
		t.Errorf("last packet arrived at %v, want ~%v (±50ms)", last, want)
	}
	if len(controlTimes) != 3 {
		t.Fatalf("got %d control events, want 3", len(controlTimes))
	}
	wantControl := []time.Duration{time.Second, 5 * time.Second, 9 * time.Second}
	for i, got := range controlTimes {
		if diff := got - wantControl[i]; diff > 50*time.Millisecond || diff < -50*time.Millisecond {
			t.Errorf("control event %d arrived at %v, want ~%v (±50ms)", i, got, wantControl[i])
		}
	}
}

func TestReplayPauseResume(t *testing.T) {
	e := newTestEngine(t)
	id := seedRecording(t, e, 5)

	var count int
	var mu sync.Mutex
	err := e.StartReplay(id, false, func(Packet) {
		mu.Lock()
		count++
		mu.Unlock()
	}, func(ControlEvent) {}, nil)
	if err != nil {
		t.Fatalf("StartReplay: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := e.PauseReplay(); err != nil {
		t.Fatalf("PauseReplay: %v", err)
	}
	mu.Lock()
	paused := count
	mu.Unlock()

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	stillPaused := count
	mu.Unlock()
	if stillPaused != paused {
		t.Errorf("packets continued to arrive while paused: %d -> %d", paused, stillPaused)
	}

	if err := e.ResumeReplay(); err != nil {
		t.Fatalf("ResumeReplay: %v", err)
	}

	e.mu.Lock()
	ar := e.replay
	e.mu.Unlock()
	if ar != nil {
		select {
		case <-ar.done:
		case <-time.After(5 * time.Second):
			t.Fatal("replay did not finish after resume")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestStopReplayUnblocksEngineForRecording(t *testing.T) {
	e := newTestEngine(t)
	id := seedRecording(t, e, 100)

	if err := e.StartReplay(id, true, func(Packet) {}, func(ControlEvent) {}, nil); err != nil {
		t.Fatalf("StartReplay: %v", err)
	}

	if err := e.StopReplay(); err != nil {
		t.Fatalf("StopReplay: %v", err)
	}

	if _, err := e.StartRecording(0.1, ""); err != nil {
		t.Errorf("StartRecording after StopReplay = %v, want nil", err)
	}
	e.StopRecording()
}
