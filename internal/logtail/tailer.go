package logtail

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// pollInterval is how often the tailer checks for new data and for
// rotation (rename/truncate) of the file it is following.
const pollInterval = 250 * time.Millisecond

// Tailer follows a log file, preferring primaryPath if it exists,
// otherwise fallbackPath, and classifies each new line into an Event.
type Tailer struct {
	primaryPath  string
	fallbackPath string
	log          zerolog.Logger

	Sink func(Event)

	mu      sync.Mutex
	ring    []Event
	ringCap int

	file *os.File
	info os.FileInfo
}

// New builds a Tailer with a ring buffer of the given capacity (default
// 200 per spec.md §4.D).
func New(primaryPath, fallbackPath string, ringCap int, log zerolog.Logger) *Tailer {
	if ringCap <= 0 {
		ringCap = 200
	}
	return &Tailer{
		primaryPath:  primaryPath,
		fallbackPath: fallbackPath,
		ringCap:      ringCap,
		log:          log.With().Str("component", "logtail").Logger(),
	}
}

// Recent returns a copy of the most recent ring-buffered events, oldest
// first, for late subscribers.
func (t *Tailer) Recent() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.ring))
	copy(out, t.ring)
	return out
}

func (t *Tailer) remember(e Event) {
	t.mu.Lock()
	t.ring = append(t.ring, e)
	if len(t.ring) > t.ringCap {
		t.ring = t.ring[len(t.ring)-t.ringCap:]
	}
	t.mu.Unlock()
}

func (t *Tailer) resolvePath() string {
	if _, err := os.Stat(t.primaryPath); err == nil {
		return t.primaryPath
	}
	return t.fallbackPath
}

func (t *Tailer) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if t.file != nil {
		t.file.Close()
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return err
	}
	t.file = f
	t.info = info
	return nil
}

// Run opens the configured log path and follows it until ctx is
// cancelled, reopening on rename/rotate/truncate.
func (t *Tailer) Run(ctx context.Context) error {
	path := t.resolvePath()
	if err := t.open(path); err != nil {
		return err
	}
	defer func() {
		if t.file != nil {
			t.file.Close()
		}
	}()

	reader := bufio.NewReader(t.file)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				t.handleLine(trimNewline(line))
			}
			if err != nil {
				break
			}
		}

		rotated, newPath, err := t.checkRotation(path)
		if err != nil {
			t.log.Warn().Err(err).Msg("log tailer stat failed")
			continue
		}
		if rotated {
			t.log.Info().Str("path", newPath).Msg("log rotation detected, reopening")
			if err := t.open(newPath); err != nil {
				t.log.Warn().Err(err).Msg("failed to reopen rotated log")
				continue
			}
			if _, err := t.file.Seek(0, io.SeekStart); err != nil {
				t.log.Warn().Err(err).Msg("failed to rewind rotated log")
			}
			reader = bufio.NewReader(t.file)
			path = newPath
		}
	}
}

// checkRotation reports whether the file backing path has changed
// (renamed away, replaced, or truncated) since it was opened.
func (t *Tailer) checkRotation(path string) (bool, string, error) {
	candidate := t.resolvePath()

	fi, err := os.Stat(candidate)
	if err != nil {
		return false, "", err
	}

	if !os.SameFile(fi, t.info) {
		return true, candidate, nil
	}

	cur, err := t.file.Stat()
	if err != nil {
		return false, "", err
	}
	if cur.Size() < t.info.Size() {
		return true, candidate, nil
	}
	return false, "", nil
}

func (t *Tailer) handleLine(line string) {
	if line == "" {
		return
	}
	e, ok := classify(line)
	if !ok {
		return
	}
	e.Timestamp = time.Now()
	t.remember(e)
	if t.Sink != nil {
		t.Sink(e)
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
