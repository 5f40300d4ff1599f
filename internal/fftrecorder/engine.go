package fftrecorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrReplayActive is returned by StartRecording while a replay is in progress.
	ErrReplayActive = errors.New("replay active")
	// ErrRecordingActive is returned by StartReplay while a recording is in progress.
	ErrRecordingActive = errors.New("recording active")
	// ErrAlreadyActive is returned starting a second recording or replay of the same kind.
	ErrAlreadyActive = errors.New("already active")
	ErrNotRecording  = errors.New("not recording")
	ErrNotReplaying  = errors.New("not replaying")
	ErrUnknownID     = errors.New("unknown recording id")
)

type mode int

const (
	modeIdle mode = iota
	modeRecording
	modeReplaying
)

// Engine owns the single in-flight recording or replay, enforcing the
// mutual-exclusion invariant from spec.md §4.I: the system may be
// recording or replaying, never both.
type Engine struct {
	dir string
	log zerolog.Logger

	mu     sync.Mutex
	m      mode
	rec    *activeRecording
	replay *activeReplay

	clock func() time.Time
}

// New constructs an Engine rooted at dir, sweeping any orphaned .tmp
// files left by a prior crash during recording.
func New(dir string, log zerolog.Logger) (*Engine, error) {
	n, err := cleanOrphanTemps(dir)
	if err != nil {
		return nil, fmt.Errorf("clean orphan recordings: %w", err)
	}
	if n > 0 {
		log.Warn().Int("removed", n).Msg("removed orphaned fft recording temp files")
	}
	return &Engine{dir: dir, log: log, clock: time.Now}, nil
}

func (e *Engine) Mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.m {
	case modeRecording:
		return "recording"
	case modeReplaying:
		return "replaying"
	default:
		return "idle"
	}
}
