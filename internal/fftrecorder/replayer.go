package fftrecorder

import (
	"sync"
	"time"
)

// ReplayProgress is emitted periodically while a replay runs.
type ReplayProgress struct {
	ID             string
	PacketIndex    int
	PacketCount    int
	ElapsedSeconds float64
}

// activeReplay tracks a running replay's pause state and cancellation.
type activeReplay struct {
	id   string
	loop bool

	mu          sync.Mutex
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration
	cancel      chan struct{}
	done        chan struct{}
}

// pauseOffset returns how much the replay's wall-clock target should
// shift forward to account for time already spent paused.
func (ar *activeReplay) pauseOffset() time.Duration {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	total := ar.pausedTotal
	if ar.paused {
		total += time.Since(ar.pausedAt)
	}
	return total
}

// StartReplay streams rec's packets to emitPacket at their recorded
// relative times, aligned to wall-clock from the replay start. A control
// event goes to emitControl just before the first packet whose relative
// time is at or after its own, not at its own time; events later than
// the last packet are emitted right after that packet.
// progress fires every 30 packets or at least once per second.
// If loop is true, relative_time wraps to zero and streaming repeats
// until StopReplay is called.
func (e *Engine) StartReplay(id string, loop bool, emitPacket func(Packet), emitControl func(ControlEvent), progress func(ReplayProgress)) error {
	e.mu.Lock()
	if e.m == modeRecording {
		e.mu.Unlock()
		return ErrRecordingActive
	}
	if e.m == modeReplaying {
		e.mu.Unlock()
		return ErrAlreadyActive
	}

	rec, err := readRecording(e.dir, id)
	if err != nil {
		e.mu.Unlock()
		return ErrUnknownID
	}

	ar := &activeReplay{
		id:     id,
		loop:   loop,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.replay = ar
	e.m = modeReplaying
	e.mu.Unlock()

	go e.runReplay(ar, rec, emitPacket, emitControl, progress)
	return nil
}

// PauseReplay suspends packet emission until ResumeReplay is called.
func (e *Engine) PauseReplay() error {
	e.mu.Lock()
	ar := e.replay
	e.mu.Unlock()
	if ar == nil {
		return ErrNotReplaying
	}
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.paused {
		return nil
	}
	ar.paused = true
	ar.pausedAt = e.clock()
	return nil
}

// ResumeReplay resumes a paused replay.
func (e *Engine) ResumeReplay() error {
	e.mu.Lock()
	ar := e.replay
	e.mu.Unlock()
	if ar == nil {
		return ErrNotReplaying
	}
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if !ar.paused {
		return nil
	}
	ar.pausedTotal += e.clock().Sub(ar.pausedAt)
	ar.paused = false
	return nil
}

// StopReplay cancels the active replay and waits for it to unwind.
func (e *Engine) StopReplay() error {
	e.mu.Lock()
	ar := e.replay
	e.mu.Unlock()
	if ar == nil {
		return ErrNotReplaying
	}
	select {
	case <-ar.cancel:
	default:
		close(ar.cancel)
	}
	<-ar.done
	return nil
}

func (e *Engine) runReplay(ar *activeReplay, rec Recording, emitPacket func(Packet), emitControl func(ControlEvent), progress func(ReplayProgress)) {
	defer close(ar.done)
	defer func() {
		e.mu.Lock()
		if e.replay == ar {
			e.replay = nil
			e.m = modeIdle
		}
		e.mu.Unlock()
	}()

	for {
		if e.replayOnce(ar, rec, emitPacket, emitControl, progress) {
			return
		}
		if !ar.loop {
			return
		}
	}
}

// replayOnce streams a single pass of rec, returning true if the
// replay was cancelled mid-pass.
func (e *Engine) replayOnce(ar *activeReplay, rec Recording, emitPacket func(Packet), emitControl func(ControlEvent), progress func(ReplayProgress)) bool {
	start := e.clock()
	lastProgress := start
	events := rec.ControlChannelEvents
	ei := 0

	for i, pkt := range rec.Packets {
		target := start.Add(time.Duration(pkt.RelativeTime * float64(time.Second)))
		if cancelled := sleepUntil(ar, target); cancelled {
			return true
		}

		for ei < len(events) && events[ei].RelativeTime <= pkt.RelativeTime {
			if emitControl != nil {
				emitControl(events[ei])
			}
			ei++
		}

		if emitPacket != nil {
			emitPacket(pkt)
		}

		now := e.clock()
		if progress != nil && (i%30 == 0 || now.Sub(lastProgress) >= time.Second) {
			progress(ReplayProgress{
				ID:             ar.id,
				PacketIndex:    i,
				PacketCount:    len(rec.Packets),
				ElapsedSeconds: now.Sub(start).Seconds(),
			})
			lastProgress = now
		}
	}
	for ei < len(events) {
		if emitControl != nil {
			emitControl(events[ei])
		}
		ei++
	}
	return false
}

// pausePollInterval bounds how quickly a pause or resume takes effect
// on an in-progress wait; small enough to feel immediate in tests.
var pausePollInterval = 20 * time.Millisecond

// sleepUntil blocks until target, honoring pause and cancellation.
// Returns true if cancelled. Re-checks the pause flag on a short poll,
// since pause and resume only flip ar.paused under ar.mu and signal no
// channel.
func sleepUntil(ar *activeReplay, target time.Time) bool {
	for {
		select {
		case <-ar.cancel:
			return true
		default:
		}

		ar.mu.Lock()
		paused := ar.paused
		ar.mu.Unlock()
		if paused {
			select {
			case <-ar.cancel:
				return true
			case <-time.After(pausePollInterval):
				continue
			}
		}

		wait := time.Until(target.Add(ar.pauseOffset()))
		if wait <= 0 {
			return false
		}
		if wait > pausePollInterval {
			wait = pausePollInterval
		}
		select {
		case <-ar.cancel:
			return true
		case <-time.After(wait):
		}
	}
}
