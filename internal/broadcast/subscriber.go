// Package broadcast fans out correlator events and raw audio/FFT frames to
// duplex-socket subscribers, filtered by per-subscriber topic subscriptions
// (spec.md §4.G).
package broadcast

import (
	"sync"
	"time"
)

// defaultQueueSize is the bound on each subscriber's outbound queue.
const defaultQueueSize = 256

// slowConsumerGrace is how long sustained overflow is tolerated before a
// subscriber is closed. Var rather than const so tests can shrink it.
var slowConsumerGrace = 5 * time.Second

// outMessage is one item in a subscriber's outbound queue.
type outMessage struct {
	binary bool
	data   []byte
}

// Subscriber is one connected duplex-socket client.
type Subscriber struct {
	ID string

	mu          sync.Mutex
	wildcard    bool
	talkgroups  map[int64]struct{}
	audioOn     bool
	fftOn       bool
	overflowAt  time.Time
	overflowing bool

	queue   chan outMessage
	closeCh chan string // reason, closed by the hub to signal disconnect
	once    sync.Once
}

func newSubscriber(id string, queueSize int) *Subscriber {
	return &Subscriber{
		ID:       id,
		wildcard: true,
		queue:    make(chan outMessage, queueSize),
		closeCh:  make(chan string, 1),
	}
}

// Outbound exposes the queue for the connection's write pump.
func (s *Subscriber) Outbound() <-chan outMessage { return s.queue }

// ClosedReason exposes the hub's shutdown signal to the write pump.
func (s *Subscriber) ClosedReason() <-chan string { return s.closeCh }

func (s *Subscriber) closeWithReason(reason string) {
	s.once.Do(func() {
		s.closeCh <- reason
		close(s.closeCh)
	})
}

// SubscribeAll switches the subscriber to wildcard (all topics) mode.
func (s *Subscriber) SubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wildcard = true
	s.talkgroups = nil
}

// Subscribe unions the given keys into the subscriber's topic set.
func (s *Subscriber) Subscribe(keys []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wildcard {
		s.wildcard = false
		s.talkgroups = nil
	}
	if s.talkgroups == nil {
		s.talkgroups = make(map[int64]struct{})
	}
	for _, k := range keys {
		s.talkgroups[k] = struct{}{}
	}
}

// Unsubscribe subtracts the given keys from the subscriber's topic set.
// A no-op while wildcard, unless the wildcard has already been materialized
// into a concrete set by a prior Subscribe call.
func (s *Subscriber) Unsubscribe(keys []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wildcard || s.talkgroups == nil {
		return
	}
	for _, k := range keys {
		delete(s.talkgroups, k)
	}
}

// SetAudio enables or disables binary audio delivery.
func (s *Subscriber) SetAudio(enabled bool) {
	s.mu.Lock()
	s.audioOn = enabled
	s.mu.Unlock()
}

// SetFFT enables or disables binary FFT delivery.
func (s *Subscriber) SetFFT(enabled bool) {
	s.mu.Lock()
	s.fftOn = enabled
	s.mu.Unlock()
}

func (s *Subscriber) wantsTopic(key int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wildcard {
		return true
	}
	_, ok := s.talkgroups[key]
	return ok
}

func (s *Subscriber) wantsAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioOn
}

func (s *Subscriber) wantsFFT() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fftOn
}

// enqueue pushes a message, applying the oldest-binary-first then
// oldest-textual eviction policy on overflow. Returns false if the
// subscriber has been overflowing longer than slowConsumerGrace.
func (s *Subscriber) enqueue(msg outMessage) bool {
	select {
	case s.queue <- msg:
		s.mu.Lock()
		s.overflowing = false
		s.mu.Unlock()
		return true
	default:
	}

	s.evictOldest()

	select {
	case s.queue <- msg:
	default:
		// Queue refilled concurrently; drop this message rather than block.
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.overflowing {
		s.overflowing = true
		s.overflowAt = time.Now()
		return true
	}
	return time.Since(s.overflowAt) < slowConsumerGrace
}

// evictOldest drops the oldest binary message if one exists in the queue;
// otherwise drops the oldest message of any kind.
func (s *Subscriber) evictOldest() {
	n := len(s.queue)
	drained := make([]outMessage, 0, n)
	for i := 0; i < n; i++ {
		select {
		case m := <-s.queue:
			drained = append(drained, m)
		default:
		}
	}

	dropped := false
	kept := drained[:0]
	for _, m := range drained {
		if !dropped && m.binary {
			dropped = true
			continue
		}
		kept = append(kept, m)
	}
	if !dropped && len(kept) > 0 {
		kept = kept[1:]
	}
	for _, m := range kept {
		select {
		case s.queue <- m:
		default:
			return
		}
	}
}
