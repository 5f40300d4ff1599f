package audioingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/scannerd/internal/metacache"
)

// statsInterval is the periodic stats log cadence: every statsEvery frames
// or statsInterval wall-clock, whichever comes first (spec.md §4.A).
const (
	statsEvery    = 100
	statsInterval = 5 * time.Second

	// readErrorBackoff throttles the read loop after a transient socket
	// error so it doesn't spin a CPU core logging the same failure.
	readErrorBackoff = 100 * time.Millisecond
)

// isClosedConnError reports whether err is the expected result of our own
// Close() call racing a blocked ReadFromUDP, as opposed to a transient I/O
// error that should be retried.
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// Listener binds the UDP audio socket and emits enriched AudioFrames to
// Sink for every datagram it can parse.
type Listener struct {
	conn       *net.UDPConn
	lookup     *metacache.Lookup
	systemType func() string
	log        zerolog.Logger

	Sink func(AudioFrame)

	frames    atomic.Int64
	malformed atomic.Int64
}

// Frames returns the count of well-formed datagrams processed so far.
func (l *Listener) Frames() int64 { return l.frames.Load() }

// Malformed returns the count of malformed datagrams rejected so far.
func (l *Listener) Malformed() int64 { return l.malformed.Load() }

// Listen binds addr (e.g. ":9000") and returns a Listener ready to Run.
func Listen(addr string, lookup *metacache.Lookup, systemType func() string, log zerolog.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return &Listener{
		conn:       conn,
		lookup:     lookup,
		systemType: systemType,
		log:        log.With().Str("component", "audioingest").Logger(),
	}, nil
}

// Close releases the socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads datagrams until ctx is cancelled or the socket is closed. It
// never blocks on anything but the socket read itself, per spec.md §5's
// hot-path requirement.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, 65535)
	lastStats := time.Now()
	sinceStats := 0

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
			if isClosedConnError(err) {
				return nil
			}
			// Transient socket error (spec.md §7.1): log and keep reading,
			// never surface to the sibling components sharing this errgroup.
			l.log.Warn().Err(err).Msg("audio ingest read error")
			time.Sleep(readErrorBackoff)
			continue
		}

		frame, perr := Parse(buf[:n])
		if perr != nil {
			l.malformed.Add(1)
			continue
		}

		l.enrich(ctx, &frame)
		l.frames.Add(1)
		sinceStats++

		if l.Sink != nil {
			l.Sink(frame)
		}

		if sinceStats >= statsEvery || time.Since(lastStats) >= statsInterval {
			l.log.Info().
				Int64("frames", l.frames.Load()).
				Int64("malformed", l.malformed.Load()).
				Msg("audio ingest stats")
			lastStats = time.Now()
			sinceStats = 0
		}
	}
}

// enrich attaches alpha_tag/group_name/group_tag/description/system_type
// from the metadata cache, keyed by talkgroup (trunked) or frequency
// (conventional).
func (l *Listener) enrich(ctx context.Context, f *AudioFrame) {
	sysType := "p25"
	if l.systemType != nil {
		sysType = l.systemType()
	}
	f.SystemType = sysType

	if sysType == "conventional" {
		if f.Frequency != 0 {
			f.ChannelKey = f.Frequency
		}
		ch, found, err := l.lookup.Channels.Get(ctx, f.ChannelKey)
		if err != nil || !found {
			return
		}
		f.AlphaTag = ch.AlphaTag
		f.GroupName = ch.GroupName
		f.GroupTag = ch.GroupTag
		f.Description = ch.Description
		return
	}

	tg, found, err := l.lookup.Talkgroups.Get(ctx, int(f.ChannelKey))
	if err != nil || !found {
		return
	}
	f.AlphaTag = tg.AlphaTag
	f.GroupName = tg.GroupName
	f.GroupTag = tg.GroupTag
	f.Description = tg.Description
}
