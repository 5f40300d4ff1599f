package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/scannerd/internal/correlator"
)

// Hub is the broadcast fan-out point described in spec.md §4.G. It holds
// the live set of Subscribers and routes correlator events and raw
// audio/FFT frames according to each subscriber's topic state.
type Hub struct {
	log zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	nextID      atomic.Uint64

	slowConsumers atomic.Int64
}

// NewHub builds an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:         log.With().Str("component", "broadcast").Logger(),
		subscribers: make(map[string]*Subscriber),
	}
}

// Register creates and tracks a new Subscriber, returning it so the
// connection handler can drive its write pump. The connected message is
// enqueued immediately.
func (h *Hub) Register() *Subscriber {
	id := h.nextID.Add(1)
	sub := newSubscriber(idString(id), defaultQueueSize)

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	if data, err := encodeText("connected", connectedMsg{SubscriberID: sub.ID}); err == nil {
		sub.enqueue(outMessage{binary: false, data: data})
	}
	return sub
}

// Unregister removes a subscriber, e.g. on socket close.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub.ID)
	h.mu.Unlock()
}

// Command applies one decoded inbound command from a subscriber's socket.
func (h *Hub) Command(sub *Subscriber, raw []byte) error {
	var cmd inboundCommand
	if err := decodeCommand(raw, &cmd); err != nil {
		return err
	}
	applyCommand(sub, cmd)
	return nil
}

// SlowConsumerDisconnects reports the lifetime count of subscribers closed
// for sustained overflow, exposed to internal/metrics.
func (h *Hub) SlowConsumerDisconnects() int64 {
	return h.slowConsumers.Load()
}

// SubscriberCount returns the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Shutdown waits up to timeout for every subscriber's outbound queue to
// drain, then closes all remaining subscribers (spec.md §4.K's "flush
// outbound queues up to a 2s deadline" teardown step).
func (h *Hub) Shutdown(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.allQueuesDrained() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, sub := range h.snapshot() {
		sub.closeWithReason("server shutting down")
	}
}

func (h *Hub) allQueuesDrained() bool {
	for _, sub := range h.snapshot() {
		if len(sub.queue) > 0 {
			return false
		}
	}
	return true
}

// snapshot returns the current subscriber list under the read lock.
func (h *Hub) snapshot() []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	return subs
}

func (h *Hub) dispatchText(kind string, channelKey int64, all bool, data any) {
	payload, err := encodeText(kind, data)
	if err != nil {
		h.log.Error().Err(err).Str("kind", kind).Msg("failed to encode outbound message")
		return
	}
	for _, sub := range h.snapshot() {
		if !all && !sub.wantsTopic(channelKey) {
			continue
		}
		h.send(sub, outMessage{binary: false, data: payload})
	}
}

func (h *Hub) send(sub *Subscriber, msg outMessage) {
	if !sub.enqueue(msg) {
		h.slowConsumers.Add(1)
		h.log.Warn().Str("subscriber", sub.ID).Msg("closing slow consumer")
		sub.closeWithReason("slow consumer")
	}
}

// HandleEvent routes one correlator.Event to matching subscribers
// (spec.md §4.G's outbound textual kinds).
func (h *Hub) HandleEvent(e correlator.Event) {
	switch e.Kind {
	case "call_start":
		h.dispatchText("call_start", e.ChannelKey, e.All, e.Payload)
	case "call_end":
		h.dispatchText("call_end", e.ChannelKey, e.All, e.Payload)
	case "calls_active":
		h.dispatchText("calls_active", e.ChannelKey, true, e.Payload)
	case "new_recording":
		h.dispatchAudioGated("new_recording", e.ChannelKey, e.Payload)
	case "error":
		h.dispatchText("error", e.ChannelKey, true, e.Payload)
	}
}

// dispatchAudioGated sends a textual message only to subscribers that have
// audio enabled AND match the topic (new_recording per spec.md §4.G).
func (h *Hub) dispatchAudioGated(kind string, channelKey int64, data any) {
	payload, err := encodeText(kind, data)
	if err != nil {
		h.log.Error().Err(err).Str("kind", kind).Msg("failed to encode outbound message")
		return
	}
	for _, sub := range h.snapshot() {
		if !sub.wantsAudio() || !sub.wantsTopic(channelKey) {
			continue
		}
		h.send(sub, outMessage{binary: false, data: payload})
	}
}

// ControlChannelUpdate and RatesUpdate and SystemChanged are broadcast to
// every subscriber regardless of topic subscription (spec.md §4.G).
func (h *Hub) ControlChannelUpdate(data any) { h.dispatchText("control_channel", 0, true, data) }
func (h *Hub) RatesUpdate(data any)          { h.dispatchText("rates", 0, true, data) }
func (h *Hub) SystemChanged(data any)        { h.dispatchText("system_changed", 0, true, data) }

// BroadcastAudio sends a raw PCM frame to subscribers with audio enabled
// that match the topic. Skipped entirely (no header built) if no
// subscriber currently wants it (spec.md §4.G's skip-on-empty rule).
func (h *Hub) BroadcastAudio(channelKey int64, header binaryHeader, pcm []byte) {
	subs := h.snapshot()
	var wanted []*Subscriber
	for _, s := range subs {
		if s.wantsAudio() && s.wantsTopic(channelKey) {
			wanted = append(wanted, s)
		}
	}
	if len(wanted) == 0 {
		return
	}
	header.Type = "audio"
	frame, err := encodeBinaryFrame(header, pcm)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode audio frame")
		return
	}
	for _, s := range wanted {
		h.send(s, outMessage{binary: true, data: frame})
	}
}

// BroadcastFFT sends a raw FFT magnitude frame to subscribers with FFT
// enabled. Skipped entirely if no subscriber wants it.
func (h *Hub) BroadcastFFT(header binaryHeader, magnitudes []byte) {
	subs := h.snapshot()
	var wanted []*Subscriber
	for _, s := range subs {
		if s.wantsFFT() {
			wanted = append(wanted, s)
		}
	}
	if len(wanted) == 0 {
		return
	}
	header.Type = "fft"
	frame, err := encodeBinaryFrame(header, magnitudes)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode fft frame")
		return
	}
	for _, s := range wanted {
		h.send(s, outMessage{binary: true, data: frame})
	}
}

// BroadcastAudioFrame is the exported entry point ingest listeners use to
// push a PCM frame, since binaryHeader is package-private.
func (h *Hub) BroadcastAudioFrame(channelKey int64, talkgroup int, frequency int64, callID string, pcm []byte) {
	h.BroadcastAudio(channelKey, binaryHeader{Talkgroup: talkgroup, Frequency: frequency, CallID: callID}, pcm)
}

// BroadcastFFTFrame is the exported entry point the fft listener uses to
// push a magnitude frame, since binaryHeader is package-private.
func (h *Hub) BroadcastFFTFrame(centerFreq int64, magnitudes []byte) {
	h.BroadcastFFT(binaryHeader{Frequency: centerFreq}, magnitudes)
}
