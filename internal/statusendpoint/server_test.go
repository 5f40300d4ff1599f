package statusendpoint

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDispatchCallStart(t *testing.T) {
	var got CallStartMsg
	s := &Server{
		log: zerolog.Nop(),
		handlers: Handlers{
			OnCallStart: func(msg CallStartMsg) { got = msg },
		},
	}

	raw := []byte(`{"type":"call_start","id":"abc","freq":851150000,"talkgroup":927,"talkgrouptag":"Control A2"}`)
	s.dispatch(raw)

	if got.ID != "abc" || got.Talkgroup != 927 || got.Freq != 851150000 {
		t.Errorf("got = %+v", got)
	}
}

func TestDispatchCallEnd(t *testing.T) {
	var got CallEndMsg
	s := &Server{
		log: zerolog.Nop(),
		handlers: Handlers{
			OnCallEnd: func(msg CallEndMsg) { got = msg },
		},
	}

	raw := []byte(`{"type":"call_end","id":"abc","freq":851150000,"talkgroup":927,"startTime":1704825600,"stopTime":1704825610,"length":10,"filename":"927-1704825600.wav","emergency":false,"encrypted":false}`)
	s.dispatch(raw)

	if got.ID != "abc" || got.StartTime != 1704825600 || got.StopTime != 1704825610 {
		t.Errorf("got = %+v", got)
	}
}

func TestDispatchUnrecognizedTypeDropped(t *testing.T) {
	called := false
	s := &Server{
		log: zerolog.Nop(),
		handlers: Handlers{
			OnCallStart: func(CallStartMsg) { called = true },
		},
	}
	s.dispatch([]byte(`{"type":"something_else"}`))
	if called {
		t.Error("expected no handler to be invoked for unrecognized type")
	}
}

func TestDispatchForwardedTypes(t *testing.T) {
	var gotKind string
	var gotRaw json.RawMessage
	s := &Server{
		log: zerolog.Nop(),
		handlers: Handlers{
			OnForward: func(kind string, raw json.RawMessage) {
				gotKind = kind
				gotRaw = raw
			},
		},
	}
	s.dispatch([]byte(`{"type":"systems","foo":"bar"}`))
	if gotKind != "systems" || len(gotRaw) == 0 {
		t.Errorf("gotKind=%q gotRaw=%s", gotKind, gotRaw)
	}
}

func TestOneConnectionAtATime(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{listener: ln, log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	c1, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial 1: %v", err)
	}
	defer c1.Close()
	time.Sleep(20 * time.Millisecond)

	c2, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial 2: %v", err)
	}
	defer c2.Close()
	time.Sleep(20 * time.Millisecond)

	buf := make([]byte, 1)
	c1.SetReadDeadline(time.Now().Add(time.Second))
	_, err = c1.Read(buf)
	if err == nil {
		t.Error("expected first connection to be closed after second connects")
	}
}
