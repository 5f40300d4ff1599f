package fftingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// readErrorBackoff throttles the read loop after a transient socket error
// so it doesn't spin a CPU core logging the same failure.
const readErrorBackoff = 100 * time.Millisecond

// Listener binds the UDP FFT socket and emits FFTPackets to Sink for every
// well-formed datagram.
type Listener struct {
	conn *net.UDPConn
	log  zerolog.Logger

	Sink func(FFTPacket)

	packets atomic.Int64
	dropped atomic.Int64
}

// Listen binds addr (e.g. ":9001").
func Listen(addr string, log zerolog.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return &Listener{
		conn: conn,
		log:  log.With().Str("component", "fftingest").Logger(),
	}, nil
}

// Close releases the socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Dropped returns the count of malformed datagrams rejected so far.
func (l *Listener) Dropped() int64 { return l.dropped.Load() }

// Packets returns the count of well-formed datagrams processed so far.
func (l *Listener) Packets() int64 { return l.packets.Load() }

// Run reads datagrams until ctx is cancelled or the socket is closed.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, 65535)

	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			// Transient socket error (spec.md §7.1): log and keep reading,
			// never surface to the sibling components sharing this errgroup.
			l.log.Warn().Err(err).Msg("fft ingest read error")
			time.Sleep(readErrorBackoff)
			continue
		}

		pkt, perr := Parse(buf[:n])
		if perr != nil {
			l.dropped.Add(1)
			l.log.Debug().Err(perr).Msg("dropped malformed fft datagram")
			continue
		}

		l.packets.Add(1)
		if l.Sink != nil {
			l.Sink(pkt)
		}
	}
}
