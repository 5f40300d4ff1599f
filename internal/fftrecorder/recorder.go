package fftrecorder

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// activeRecording accumulates packets and control events in memory until
// the recording is finalized, then is written atomically to disk.
type activeRecording struct {
	id         string
	name       string
	start      time.Time
	duration   time.Duration
	centerFreq int64
	sampleRate int64
	fftSize    int
	minFreq    int64
	maxFreq    int64

	packets []Packet
	events  []ControlEvent

	timer *time.Timer
}

func newRecordingID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// StartRecording begins capturing FFT packets for durationSeconds. If
// name is empty, a random id doubles as the name. Auto-finalizes after
// the duration elapses unless StopRecording is called first.
func (e *Engine) StartRecording(durationSeconds float64, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.m == modeReplaying {
		return "", ErrReplayActive
	}
	if e.m == modeRecording {
		return "", ErrAlreadyActive
	}

	id, err := newRecordingID()
	if err != nil {
		return "", fmt.Errorf("generate recording id: %w", err)
	}
	if name == "" {
		name = id
	}

	ar := &activeRecording{
		id:       id,
		name:     name,
		start:    e.clock(),
		duration: time.Duration(durationSeconds * float64(time.Second)),
	}
	e.rec = ar
	e.m = modeRecording

	ar.timer = time.AfterFunc(ar.duration, func() {
		e.finalizeIfCurrent(ar)
	})

	e.log.Info().Str("id", id).Float64("durationSeconds", durationSeconds).Msg("fft recording started")
	return id, nil
}

// StopRecording finalizes the active recording early and returns its id.
func (e *Engine) StopRecording() (string, error) {
	e.mu.Lock()
	if e.m != modeRecording || e.rec == nil {
		e.mu.Unlock()
		return "", ErrNotRecording
	}
	ar := e.rec
	e.mu.Unlock()

	ar.timer.Stop()
	return ar.id, e.finalizeIfCurrent(ar)
}

// CaptureFFT records one FFT frame if a recording is active. It is a
// no-op otherwise, so callers may wire it unconditionally to the
// ingest pipeline's packet stream.
func (e *Engine) CaptureFFT(centerFreq, sampleRate int64, fftSize int, minFreq, maxFreq int64, magnitudes []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m != modeRecording || e.rec == nil {
		return
	}
	ar := e.rec
	if len(ar.packets) == 0 {
		ar.centerFreq, ar.sampleRate, ar.fftSize = centerFreq, sampleRate, fftSize
		ar.minFreq, ar.maxFreq = minFreq, maxFreq
	}
	now := e.clock()
	mags := make([]float32, len(magnitudes))
	copy(mags, magnitudes)
	ar.packets = append(ar.packets, Packet{
		Timestamp:    now.Unix(),
		RelativeTime: now.Sub(ar.start).Seconds(),
		Magnitudes:   mags,
	})
}

// CaptureControlEvent records a control-channel event if a recording is active.
func (e *Engine) CaptureControlEvent(kind string, talkgroup int, talkgroupTag string, frequency int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m != modeRecording || e.rec == nil {
		return
	}
	ar := e.rec
	now := e.clock()
	ar.events = append(ar.events, ControlEvent{
		Kind:         kind,
		Talkgroup:    talkgroup,
		TalkgroupTag: talkgroupTag,
		Frequency:    frequency,
		RelativeTime: now.Sub(ar.start).Seconds(),
	})
}

// finalizeIfCurrent writes ar to disk and clears recording state, but
// only if ar is still the engine's active recording (guards against a
// stale timer firing after an explicit StopRecording already finalized it).
func (e *Engine) finalizeIfCurrent(ar *activeRecording) error {
	e.mu.Lock()
	if e.rec != ar {
		e.mu.Unlock()
		return nil
	}
	end := e.clock()
	rec := buildRecording(ar, end)
	if raw, err := json.Marshal(rec); err == nil {
		rec.Metadata.FileSize = int64(len(raw))
	}
	e.rec = nil
	e.m = modeIdle
	dir := e.dir
	e.mu.Unlock()

	if err := writeAtomic(dir, ar.id, rec); err != nil {
		e.log.Error().Err(err).Str("id", ar.id).Msg("failed to finalize fft recording")
		return err
	}
	e.log.Info().Str("id", ar.id).Int("packets", len(rec.Packets)).Msg("fft recording finalized")
	return nil
}

func buildRecording(ar *activeRecording, end time.Time) Recording {
	uniqueTG := map[int]struct{}{}
	transmissions := 0
	for _, ev := range ar.events {
		if ev.Kind == "call_start" {
			transmissions++
			uniqueTG[ev.Talkgroup] = struct{}{}
		}
	}
	return Recording{
		Metadata: Metadata{
			ID:                   ar.id,
			Name:                 ar.name,
			StartTime:            ar.start.Unix(),
			EndTime:              end.Unix(),
			Duration:             end.Sub(ar.start).Seconds(),
			CenterFreq:           ar.centerFreq,
			SampleRate:           ar.sampleRate,
			FFTSize:              ar.fftSize,
			MinFreq:              ar.minFreq,
			MaxFreq:              ar.maxFreq,
			PacketCount:          len(ar.packets),
			ControlChannelEvents: len(ar.events),
			Transmissions:        transmissions,
			UniqueTalkgroups:     len(uniqueTG),
		},
		Packets:              ar.packets,
		ControlChannelEvents: ar.events,
	}
}
