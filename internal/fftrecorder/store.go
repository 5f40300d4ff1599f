package fftrecorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// recordingPath returns the path a finalized recording is stored at.
func recordingPath(dir, id string) string {
	return filepath.Join(dir, id)
}

func tmpPath(dir, id string) string {
	return filepath.Join(dir, id+".tmp")
}

// writeAtomic serializes rec to <id>.tmp then renames to <id>, matching
// the teacher's local-storage atomic-write discipline.
func writeAtomic(dir, id string, rec Recording) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}

	tp := tmpPath(dir, id)
	f, err := os.Create(tp)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tp)
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tp)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tp, recordingPath(dir, id)); err != nil {
		os.Remove(tp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// readRecording loads a finalized recording by id.
func readRecording(dir, id string) (Recording, error) {
	var rec Recording
	data, err := os.ReadFile(recordingPath(dir, id))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal recording %s: %w", id, err)
	}
	return rec, nil
}

// cleanOrphanTemps removes any <id>.tmp left behind by a process that
// crashed mid-recording, per spec.md §4.I.
func cleanOrphanTemps(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var removed int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
