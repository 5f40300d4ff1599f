// Package dispatch forwards live call audio to an external console over a
// TCP supervisory connection plus a UDP data stream (spec.md §4.H).
package dispatch

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	dialTimeout  = 5 * time.Second
	reconnectMin = 1 * time.Second
	reconnectCap = 30 * time.Second
)

// idleTimeout and endGrace are vars (not consts) so tests can shrink them.
var (
	idleTimeout = 3 * time.Second
	endGrace    = 10 * time.Second
)

// callState is the per-canonical-call-ID bookkeeping the streamer needs to
// emit start/end control messages and detect idle calls.
type callState struct {
	tg         int
	freq       int64
	alphaTag   string
	lastFrame  time.Time
	pendingEnd *time.Time // set when a call_end send failed; retried until this deadline
}

// Streamer owns the TCP supervisory connection and UDP data socket to one
// downstream peer.
type Streamer struct {
	host    string
	tcpPort int
	udpPort int
	log     zerolog.Logger

	enabled atomic.Bool

	tcpMu   sync.Mutex
	tcpConn net.Conn

	udpConn *net.UDPConn
	seq     atomic.Uint32

	callsMu sync.Mutex
	calls   map[string]*callState

	Counters *Counters

	cancel context.CancelFunc
}

// New builds a Streamer. It does not connect until Run is called.
func New(host string, tcpPort, udpPort int, log zerolog.Logger) *Streamer {
	s := &Streamer{
		host:     host,
		tcpPort:  tcpPort,
		udpPort:  udpPort,
		log:      log.With().Str("component", "dispatch").Logger(),
		calls:    make(map[string]*callState),
		Counters: newCounters(),
	}
	s.enabled.Store(true)
	return s
}

// SetEnabled toggles forwarding at runtime. Disabling drains in-flight
// state and drops the TCP connection; re-enabling reconnects.
func (s *Streamer) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
	if !enabled {
		s.closeTCP()
		s.callsMu.Lock()
		s.calls = make(map[string]*callState)
		s.callsMu.Unlock()
	}
}

func (s *Streamer) Enabled() bool { return s.enabled.Load() }

// Run dials the UDP socket once and drives the TCP supervisory connection
// with reconnect-on-failure until ctx is cancelled. It also runs the idle
// sweep that closes calls with no frames for idleTimeout.
func (s *Streamer) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", udpAddr(s.host, s.udpPort))
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	s.udpConn = conn
	defer s.udpConn.Close()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	go s.idleSweep(ctx)
	s.connectLoop(ctx)
	return nil
}

func (s *Streamer) connectLoop(ctx context.Context) {
	bo := newBackoff(reconnectMin, reconnectCap)
	for {
		select {
		case <-ctx.Done():
			s.closeTCP()
			return
		default:
		}

		if !s.enabled.Load() {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		conn, err := net.DialTimeout("tcp", tcpAddr(s.host, s.tcpPort), dialTimeout)
		if err != nil {
			s.Counters.TCPErrors.Add(1)
			s.Counters.recordError(err)
			s.log.Warn().Err(err).Msg("dispatch TCP connect failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.next()):
			}
			continue
		}

		bo.reset()
		s.tcpMu.Lock()
		s.tcpConn = conn
		s.tcpMu.Unlock()
		s.log.Info().Str("addr", conn.RemoteAddr().String()).Msg("dispatch TCP connected")

		s.retryPendingEnds()

		s.waitForDisconnect(ctx, conn)
	}
}

// waitForDisconnect blocks reading (and discarding) from the supervisory
// connection until it errors or ctx is cancelled — the console may send
// acks/heartbeats we don't need to act on, but reading drains the socket.
func (s *Streamer) waitForDisconnect(ctx context.Context, conn net.Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 512)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
		s.Counters.TCPErrors.Add(1)
	}
	s.closeTCP()
}

func (s *Streamer) closeTCP() {
	s.tcpMu.Lock()
	defer s.tcpMu.Unlock()
	if s.tcpConn != nil {
		s.tcpConn.Close()
		s.tcpConn = nil
	}
}

// ForwardFrame sends one PCM frame for the given canonical call ID,
// emitting a call_start control message on first sight.
func (s *Streamer) ForwardFrame(callID string, tg int, freq int64, alphaTag string, sampleRate uint32, pcm []byte) {
	if !s.enabled.Load() {
		return
	}

	s.callsMu.Lock()
	cs, exists := s.calls[callID]
	if !exists {
		cs = &callState{tg: tg, freq: freq, alphaTag: alphaTag}
		s.calls[callID] = cs
		s.Counters.CallsStarted.Add(1)
	}
	cs.lastFrame = time.Now()
	s.callsMu.Unlock()

	if !exists {
		s.sendControl(controlMsg{Type: "call_start", ID: callID, TG: tg, Freq: freq, AlphaTag: alphaTag})
	}

	tgidOrFreq := uint32(tg)
	if tg == 0 {
		tgidOrFreq = uint32(freq)
	}
	pkt := encodeUDPPacket(s.seq.Add(1), tgidOrFreq, uint32(freq), sampleRate, pcm)
	if _, err := s.udpConn.Write(pkt); err != nil {
		s.Counters.UDPErrors.Add(1)
		s.Counters.recordError(err)
		return
	}
	s.Counters.PacketsUDPSent.Add(1)
	s.Counters.BytesUDPSent.Add(int64(len(pkt)))
	s.Counters.recordPacket()
}

// EndCall emits a call_end control message and drops the call's local
// state, whether triggered by correlator call-end or idle timeout.
func (s *Streamer) EndCall(callID string) {
	s.callsMu.Lock()
	cs, exists := s.calls[callID]
	if exists {
		delete(s.calls, callID)
	}
	s.callsMu.Unlock()
	if !exists {
		return
	}
	s.sendControl(controlMsg{Type: "call_end", ID: callID, TG: cs.tg, Freq: cs.freq, AlphaTag: cs.alphaTag})
}

func (s *Streamer) sendControl(msg controlMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.tcpMu.Lock()
	conn := s.tcpConn
	s.tcpMu.Unlock()

	if conn == nil {
		s.onControlFailure(msg)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if _, err := conn.Write(data); err != nil {
		s.Counters.TCPErrors.Add(1)
		s.Counters.recordError(err)
		s.onControlFailure(msg)
		return
	}
	s.Counters.PacketsTCPSent.Add(1)
	s.Counters.BytesTCPSent.Add(int64(len(data)))
}

// onControlFailure applies spec.md §4.H's failure semantics: a failed
// call_end is retried on reconnect within a 10s grace window, else
// dropped. Failed call_start messages are not retried; the UDP frames
// still carry the talkgroup (or frequency) of the call, but not its
// canonical ID.
func (s *Streamer) onControlFailure(msg controlMsg) {
	if msg.Type != "call_end" {
		return
	}
	deadline := time.Now().Add(endGrace)
	s.callsMu.Lock()
	s.calls[msg.ID] = &callState{tg: msg.TG, freq: msg.Freq, alphaTag: msg.AlphaTag, pendingEnd: &deadline}
	s.callsMu.Unlock()
}

// retryPendingEnds resends call_end messages for calls whose prior attempt
// failed, dropping any past their grace deadline.
func (s *Streamer) retryPendingEnds() {
	s.callsMu.Lock()
	var retry []controlMsg
	now := time.Now()
	for id, cs := range s.calls {
		if cs.pendingEnd == nil {
			continue
		}
		if now.After(*cs.pendingEnd) {
			delete(s.calls, id)
			continue
		}
		retry = append(retry, controlMsg{Type: "call_end", ID: id, TG: cs.tg, Freq: cs.freq, AlphaTag: cs.alphaTag})
		delete(s.calls, id)
	}
	s.callsMu.Unlock()

	for _, msg := range retry {
		s.sendControl(msg)
	}
}

func (s *Streamer) idleSweep(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdleCalls()
		}
	}
}

func (s *Streamer) sweepIdleCalls() {
	now := time.Now()
	s.callsMu.Lock()
	var idle []string
	for id, cs := range s.calls {
		if cs.pendingEnd != nil {
			continue
		}
		if now.Sub(cs.lastFrame) > idleTimeout {
			idle = append(idle, id)
		}
	}
	s.callsMu.Unlock()

	for _, id := range idle {
		s.EndCall(id)
	}
}
