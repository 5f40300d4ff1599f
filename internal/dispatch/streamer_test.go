package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeConsole is a minimal TCP+UDP peer standing in for the external
// console the Streamer forwards to.
type fakeConsole struct {
	tcpLn   net.Listener
	tcpPort int
	udpConn *net.UDPConn
	udpPort int

	controlCh chan controlMsg
	udpCh     chan []byte
}

func startFakeConsole(t *testing.T) *fakeConsole {
	t.Helper()
	tcpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		t.Fatal(err)
	}

	fc := &fakeConsole{
		tcpLn:     tcpLn,
		tcpPort:   tcpLn.Addr().(*net.TCPAddr).Port,
		udpConn:   udpConn,
		udpPort:   udpConn.LocalAddr().(*net.UDPAddr).Port,
		controlCh: make(chan controlMsg, 16),
		udpCh:     make(chan []byte, 16),
	}

	go func() {
		conn, err := tcpLn.Accept()
		if err != nil {
			return
		}
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			var msg controlMsg
			if json.Unmarshal(sc.Bytes(), &msg) == nil {
				fc.controlCh <- msg
			}
		}
	}()

	go func() {
		buf := make([]byte, 2048)
		for {
			n, _, err := udpConn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			cp := make([]byte, n)
			copy(cp, buf[:n])
			fc.udpCh <- cp
		}
	}()

	return fc
}

func (fc *fakeConsole) close() {
	fc.tcpLn.Close()
	fc.udpConn.Close()
}

func TestStreamerForwardsStartFrameAndEnd(t *testing.T) {
	fc := startFakeConsole(t)
	defer fc.close()

	s := New("127.0.0.1", fc.tcpPort, fc.udpPort, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Give the connect loop time to dial.
	time.Sleep(100 * time.Millisecond)

	s.ForwardFrame("927-1000", 927, 851150000, "Control A2", 8000, []byte{1, 0, 2, 0})

	select {
	case msg := <-fc.controlCh:
		if msg.Type != "call_start" || msg.ID != "927-1000" {
			t.Errorf("got %+v, want call_start/927-1000", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call_start control message")
	}

	select {
	case pkt := <-fc.udpCh:
		if len(pkt) != udpHeaderLen+4 {
			t.Errorf("packet len = %d, want %d", len(pkt), udpHeaderLen+4)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for UDP packet")
	}

	snap := s.Counters.Snapshot()
	if snap.CallsStarted != 1 {
		t.Errorf("CallsStarted = %d, want 1", snap.CallsStarted)
	}
	if snap.PacketsUDPSent != 1 {
		t.Errorf("PacketsUDPSent = %d, want 1", snap.PacketsUDPSent)
	}

	s.EndCall("927-1000")
	select {
	case msg := <-fc.controlCh:
		if msg.Type != "call_end" {
			t.Errorf("got %+v, want call_end", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call_end control message")
	}
}

func TestStreamerIdleSweepEndsStaleCall(t *testing.T) {
	origIdle := idleTimeout
	idleTimeout = 50 * time.Millisecond
	defer func() { idleTimeout = origIdle }()

	fc := startFakeConsole(t)
	defer fc.close()

	s := New("127.0.0.1", fc.tcpPort, fc.udpPort, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	s.ForwardFrame("500-2000", 0, 500000000, "", 8000, []byte{1, 0})
	<-fc.controlCh // call_start

	select {
	case msg := <-fc.controlCh:
		if msg.Type != "call_end" || msg.ID != "500-2000" {
			t.Errorf("got %+v, want call_end/500-2000", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle sweep did not emit call_end")
	}
}

func TestSetEnabledFalseDisconnects(t *testing.T) {
	fc := startFakeConsole(t)
	defer fc.close()

	s := New("127.0.0.1", fc.tcpPort, fc.udpPort, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	s.SetEnabled(false)
	if s.Enabled() {
		t.Error("expected Enabled() false after SetEnabled(false)")
	}

	s.ForwardFrame("1-1", 1, 0, "", 8000, []byte{1, 0})
	select {
	case msg := <-fc.controlCh:
		t.Fatalf("should not forward while disabled, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
