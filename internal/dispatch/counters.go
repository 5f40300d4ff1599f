package dispatch

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counters tracks the lifetime statistics spec.md §4.H requires exposing.
type Counters struct {
	PacketsUDPSent atomic.Int64
	PacketsTCPSent atomic.Int64
	BytesUDPSent   atomic.Int64
	BytesTCPSent   atomic.Int64
	CallsStarted   atomic.Int64
	UDPErrors      atomic.Int64
	TCPErrors      atomic.Int64

	lastErrorMu sync.RWMutex
	lastError   string
	lastErrorAt time.Time

	lastPacketMu sync.RWMutex
	lastPacketAt time.Time

	startedAt time.Time
}

func newCounters() *Counters {
	return &Counters{startedAt: time.Now()}
}

func (c *Counters) recordError(err error) {
	c.lastErrorMu.Lock()
	c.lastError = err.Error()
	c.lastErrorAt = time.Now()
	c.lastErrorMu.Unlock()
}

func (c *Counters) recordPacket() {
	c.lastPacketMu.Lock()
	c.lastPacketAt = time.Now()
	c.lastPacketMu.Unlock()
}

// Snapshot is a point-in-time read of every counter, suitable for a
// status report or metrics scrape.
type Snapshot struct {
	PacketsUDPSent int64
	PacketsTCPSent int64
	BytesUDPSent   int64
	BytesTCPSent   int64
	CallsStarted   int64
	UDPErrors      int64
	TCPErrors      int64
	LastError      string
	LastErrorTime  time.Time
	LastPacketTime time.Time
	Uptime         time.Duration
}

func (c *Counters) Snapshot() Snapshot {
	c.lastErrorMu.RLock()
	lastErr, lastErrAt := c.lastError, c.lastErrorAt
	c.lastErrorMu.RUnlock()

	c.lastPacketMu.RLock()
	lastPkt := c.lastPacketAt
	c.lastPacketMu.RUnlock()

	return Snapshot{
		PacketsUDPSent: c.PacketsUDPSent.Load(),
		PacketsTCPSent: c.PacketsTCPSent.Load(),
		BytesUDPSent:   c.BytesUDPSent.Load(),
		BytesTCPSent:   c.BytesTCPSent.Load(),
		CallsStarted:   c.CallsStarted.Load(),
		UDPErrors:      c.UDPErrors.Load(),
		TCPErrors:      c.TCPErrors.Load(),
		LastError:      lastErr,
		LastErrorTime:  lastErrAt,
		LastPacketTime: lastPkt,
		Uptime:         time.Since(c.startedAt),
	}
}
