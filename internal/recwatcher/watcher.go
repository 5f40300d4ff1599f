// Package recwatcher watches a recording directory tree for finalized
// sidecar JSON files and emits completion events once the companion .wav
// is confirmed present (spec.md §4.E).
package recwatcher

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceDelay coalesces rapid create+write events on the same sidecar
// file, giving the decoder time to finish writing before it is read.
const debounceDelay = 500 * time.Millisecond

// Sidecar is the decoder-written JSON metadata accompanying a finalized
// recording.
type Sidecar struct {
	Talkgroup    int     `json:"talkgroup"`
	TalkgroupTag string  `json:"talkgrouptag"`
	Freq         int64   `json:"freq"`
	StartTime    int64   `json:"start_time"`
	StopTime     int64   `json:"stop_time"`
	Emergency    bool    `json:"emergency"`
	Encrypted    bool    `json:"encrypted"`
	AudioType    string  `json:"audio_type"`
	CallLength   float64 `json:"call_length"`
}

// Completion is emitted once a sidecar and its companion .wav are both
// confirmed present.
type Completion struct {
	Sidecar   Sidecar
	JSONPath  string
	AudioPath string
}

// Watcher monitors watchDir for *.json sidecar files.
type Watcher struct {
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	// seen dedupes repeat sidecar observations (e.g. a second Write event
	// for a file already processed) so at most one Completion is emitted
	// per path, per spec.md §8's idempotence law.
	seenMu sync.Mutex
	seen   map[string]bool

	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64

	Sink func(Completion)
}

// New builds a Watcher rooted at watchDir.
func New(watchDir string, log zerolog.Logger) *Watcher {
	return &Watcher{
		watchDir:       watchDir,
		log:            log.With().Str("component", "recwatcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
		seen:           make(map[string]bool),
	}
}

// Start initializes the fsnotify watcher and begins watching watchDir and
// its subdirectories for sidecar files.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	dirCount := 0
	err = filepath.WalkDir(w.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("error walking recordings directory")
			return nil
		}
		if d.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return err
	}

	w.log.Info().Int("directories", dirCount).Str("watch_dir", w.watchDir).Msg("recording watcher initialized")
	return nil
}

// Stop closes the fsnotify watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.log.Info().
		Int64("files_processed", w.filesProcessed.Load()).
		Int64("files_skipped", w.filesSkipped.Load()).
		Msg("recording watcher stopped")
}

// Run processes fsnotify events until the watcher is stopped or done is
// closed.
func (w *Watcher) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.watcher.Add(event.Name); err != nil {
					w.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new subdirectory")
				}
				continue
			}

			if !strings.HasSuffix(strings.ToLower(event.Name), ".json") {
				continue
			}

			w.scheduleProcess(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) scheduleProcess(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(debounceDelay)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(debounceDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.process(path)
	})
}

func (w *Watcher) process(path string) {
	w.seenMu.Lock()
	if w.seen[path] {
		w.seenMu.Unlock()
		return
	}
	w.seenMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("failed to read sidecar")
		return
	}

	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("failed to parse sidecar JSON")
		return
	}

	audioPath := companionWav(path)
	if _, err := os.Stat(audioPath); err != nil {
		w.log.Debug().Str("path", path).Msg("sidecar present but companion wav missing, skipping")
		w.filesSkipped.Add(1)
		return
	}

	w.seenMu.Lock()
	if w.seen[path] {
		w.seenMu.Unlock()
		return
	}
	w.seen[path] = true
	w.seenMu.Unlock()

	w.filesProcessed.Add(1)
	if w.Sink != nil {
		w.Sink(Completion{Sidecar: sc, JSONPath: path, AudioPath: audioPath})
	}
}

// companionWav derives the expected audio path for a sidecar JSON path by
// swapping its extension.
func companionWav(jsonPath string) string {
	ext := filepath.Ext(jsonPath)
	return jsonPath[:len(jsonPath)-len(ext)] + ".wav"
}
