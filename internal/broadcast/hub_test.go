package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/scannerd/internal/correlator"
)

func drainText(t *testing.T, sub *Subscriber) outMessage {
	t.Helper()
	select {
	case m := <-sub.Outbound():
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
		return outMessage{}
	}
}

func TestHubDispatchesConnectedOnRegister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	sub := h.Register()
	msg := drainText(t, sub)
	if msg.binary {
		t.Error("connected message should be textual")
	}
}

func TestHubCallStartFiltersToSubscribedTopic(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := h.Register()
	<-a.Outbound() // connected
	a.Subscribe([]int64{927})

	b := h.Register()
	<-b.Outbound() // connected
	b.Subscribe([]int64{500})

	h.HandleEvent(correlator.Event{Kind: "call_start", ChannelKey: 927, Payload: correlator.CallStartPayload{ID: "x"}})

	select {
	case <-a.Outbound():
	case <-time.After(time.Second):
		t.Fatal("subscribed subscriber should have received call_start")
	}
	select {
	case m := <-b.Outbound():
		t.Fatalf("non-subscribed subscriber should not receive call_start, got %v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCallsActiveBroadcastsToAll(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := h.Register()
	<-a.Outbound()

	h.HandleEvent(correlator.Event{Kind: "calls_active", Payload: correlator.CallsActivePayload{IDs: []string{"1"}}})

	select {
	case <-a.Outbound():
	case <-time.After(time.Second):
		t.Fatal("expected calls_active to reach subscriber with no subscriptions")
	}
}

func TestHubNewRecordingRequiresAudioEnabled(t *testing.T) {
	h := NewHub(zerolog.Nop())
	sub := h.Register()
	<-sub.Outbound()
	sub.SubscribeAll()

	h.HandleEvent(correlator.Event{Kind: "new_recording", ChannelKey: 1, Payload: correlator.NewRecordingPayload{ID: "x"}})
	select {
	case m := <-sub.Outbound():
		t.Fatalf("expected no new_recording without audio enabled, got %v", m)
	case <-time.After(50 * time.Millisecond):
	}

	sub.SetAudio(true)
	h.HandleEvent(correlator.Event{Kind: "new_recording", ChannelKey: 1, Payload: correlator.NewRecordingPayload{ID: "x"}})
	select {
	case <-sub.Outbound():
	case <-time.After(time.Second):
		t.Fatal("expected new_recording once audio enabled")
	}
}

func TestHubSkipsBinaryBuildWhenNoSubscriberWantsIt(t *testing.T) {
	h := NewHub(zerolog.Nop())
	sub := h.Register()
	<-sub.Outbound()
	sub.SubscribeAll() // audio/fft both still disabled

	h.BroadcastAudio(1, binaryHeader{}, []byte{1, 2, 3})
	h.BroadcastFFT(binaryHeader{}, []byte{1, 2, 3, 4})

	select {
	case m := <-sub.Outbound():
		t.Fatalf("expected no binary frame with audio/fft disabled, got %v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastAudioHonorsTopicFilter(t *testing.T) {
	h := NewHub(zerolog.Nop())
	sub := h.Register()
	<-sub.Outbound()
	sub.Subscribe([]int64{927})
	sub.SetAudio(true)

	h.BroadcastAudio(500, binaryHeader{}, []byte{1, 2})
	select {
	case m := <-sub.Outbound():
		t.Fatalf("expected no audio frame for non-subscribed channel, got %v", m)
	case <-time.After(50 * time.Millisecond):
	}

	h.BroadcastAudio(927, binaryHeader{}, []byte{1, 2})
	msg := drainText(t, sub)
	if !msg.binary {
		t.Error("expected binary frame for subscribed channel")
	}
}
