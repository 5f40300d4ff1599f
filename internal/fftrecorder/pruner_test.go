package fftrecorder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeFileWithAge(t *testing.T, path string, size int, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}

func TestPrunerRemovesOldRecordings(t *testing.T) {
	dir := t.TempDir()
	writeFileWithAge(t, filepath.Join(dir, "old"), 10, 48*time.Hour)
	writeFileWithAge(t, filepath.Join(dir, "new"), 10, time.Minute)

	p := NewPruner(dir, 24*time.Hour, 0, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(filepath.Join(dir, "old")); !os.IsNotExist(err) {
		t.Error("expected old recording pruned")
	}
	if _, err := os.Stat(filepath.Join(dir, "new")); err != nil {
		t.Error("expected new recording to survive")
	}
}

func TestPrunerRemovesBySizeOldestFirst(t *testing.T) {
	dir := t.TempDir()
	writeFileWithAge(t, filepath.Join(dir, "oldest"), 100, 3*time.Hour)
	writeFileWithAge(t, filepath.Join(dir, "middle"), 100, 2*time.Hour)
	writeFileWithAge(t, filepath.Join(dir, "newest"), 100, time.Hour)

	p := NewPruner(dir, 0, 150, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(filepath.Join(dir, "oldest")); !os.IsNotExist(err) {
		t.Error("expected oldest recording pruned first")
	}
	if _, err := os.Stat(filepath.Join(dir, "newest")); err != nil {
		t.Error("expected newest recording to survive")
	}
}

func TestPrunerSkipsOrphanTempFiles(t *testing.T) {
	dir := t.TempDir()
	writeFileWithAge(t, filepath.Join(dir, "abc.tmp"), 10, 48*time.Hour)

	p := NewPruner(dir, 24*time.Hour, 0, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(filepath.Join(dir, "abc.tmp")); err != nil {
		t.Error(".tmp files should be left to orphan cleanup, not the age pruner")
	}
}

func TestPrunerNoopWhenUnconfigured(t *testing.T) {
	dir := t.TempDir()
	writeFileWithAge(t, filepath.Join(dir, "old"), 10, 48*time.Hour)

	p := NewPruner(dir, 0, 0, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(filepath.Join(dir, "old")); err != nil {
		t.Error("pruner with retention=0 and maxBytes=0 must not delete anything")
	}
}
