package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumenprima/scannerd/internal/audioingest"
	"github.com/lumenprima/scannerd/internal/broadcast"
	"github.com/lumenprima/scannerd/internal/correlator"
	"github.com/lumenprima/scannerd/internal/dispatch"
	"github.com/lumenprima/scannerd/internal/fftingest"
)

// Collector implements prometheus.Collector, reading live gauges and
// counters from each ingest/fan-out component at scrape time rather than
// tracking them redundantly. Any field may be nil (component not yet
// started, or absent from this deployment) — Collect reports 0 for it.
type Collector struct {
	pool       *pgxpool.Pool
	correlator *correlator.Correlator
	hub        *broadcast.Hub
	audio      *audioingest.Listener
	fft        *fftingest.Listener
	streamer   *dispatch.Streamer

	activeCalls          *prometheus.Desc
	subscribers          *prometheus.Desc
	slowConsumers        *prometheus.Desc
	audioFrames          *prometheus.Desc
	audioMalformed       *prometheus.Desc
	fftPackets           *prometheus.Desc
	fftDropped           *prometheus.Desc
	dispatchUDPPackets   *prometheus.Desc
	dispatchTCPPackets   *prometheus.Desc
	dispatchUDPBytes     *prometheus.Desc
	dispatchTCPBytes     *prometheus.Desc
	dispatchUDPErrors    *prometheus.Desc
	dispatchTCPErrors    *prometheus.Desc
	dispatchCallsStarted *prometheus.Desc
	dbTotalConns         *prometheus.Desc
	dbAcquiredConns      *prometheus.Desc
	dbIdleConns          *prometheus.Desc
}

// NewCollector creates a collector over whichever components are running.
// Every argument is nil-safe.
func NewCollector(pool *pgxpool.Pool, corr *correlator.Correlator, hub *broadcast.Hub, audio *audioingest.Listener, fft *fftingest.Listener, streamer *dispatch.Streamer) *Collector {
	return &Collector{
		pool:       pool,
		correlator: corr,
		hub:        hub,
		audio:      audio,
		fft:        fft,
		streamer:   streamer,

		activeCalls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_calls"),
			"Current number of in-progress calls.", nil, nil),
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "websocket_subscribers_active"),
			"Current number of connected websocket subscribers.", nil, nil),
		slowConsumers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "websocket_slow_consumer_disconnects_total"),
			"Total subscribers disconnected for sustained outbound overflow.", nil, nil),
		audioFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "audio_ingest", "frames_total"),
			"Total well-formed audio datagrams processed.", nil, nil),
		audioMalformed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "audio_ingest", "malformed_total"),
			"Total malformed audio datagrams rejected.", nil, nil),
		fftPackets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "fft_ingest", "packets_total"),
			"Total well-formed FFT datagrams processed.", nil, nil),
		fftDropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "fft_ingest", "dropped_total"),
			"Total malformed FFT datagrams rejected.", nil, nil),
		dispatchUDPPackets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "udp_packets_sent_total"),
			"Total PCM UDP packets forwarded downstream.", nil, nil),
		dispatchTCPPackets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "tcp_messages_sent_total"),
			"Total control messages forwarded downstream.", nil, nil),
		dispatchUDPBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "udp_bytes_sent_total"),
			"Total PCM bytes forwarded downstream.", nil, nil),
		dispatchTCPBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "tcp_bytes_sent_total"),
			"Total control-message bytes forwarded downstream.", nil, nil),
		dispatchUDPErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "udp_errors_total"),
			"Total UDP send errors.", nil, nil),
		dispatchTCPErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "tcp_errors_total"),
			"Total TCP connect/write errors.", nil, nil),
		dispatchCallsStarted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "calls_started_total"),
			"Total calls forwarded downstream.", nil, nil),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.", nil, nil),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.", nil, nil),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeCalls
	ch <- c.subscribers
	ch <- c.slowConsumers
	ch <- c.audioFrames
	ch <- c.audioMalformed
	ch <- c.fftPackets
	ch <- c.fftDropped
	ch <- c.dispatchUDPPackets
	ch <- c.dispatchTCPPackets
	ch <- c.dispatchUDPBytes
	ch <- c.dispatchTCPBytes
	ch <- c.dispatchUDPErrors
	ch <- c.dispatchTCPErrors
	ch <- c.dispatchCallsStarted
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	activeCalls := 0.0
	if c.correlator != nil {
		activeCalls = float64(c.correlator.ActiveCallCount())
	}
	ch <- prometheus.MustNewConstMetric(c.activeCalls, prometheus.GaugeValue, activeCalls)

	var subs, slow float64
	if c.hub != nil {
		subs = float64(c.hub.SubscriberCount())
		slow = float64(c.hub.SlowConsumerDisconnects())
	}
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, subs)
	ch <- prometheus.MustNewConstMetric(c.slowConsumers, prometheus.CounterValue, slow)

	var audioFrames, audioMalformed float64
	if c.audio != nil {
		audioFrames = float64(c.audio.Frames())
		audioMalformed = float64(c.audio.Malformed())
	}
	ch <- prometheus.MustNewConstMetric(c.audioFrames, prometheus.CounterValue, audioFrames)
	ch <- prometheus.MustNewConstMetric(c.audioMalformed, prometheus.CounterValue, audioMalformed)

	var fftPackets, fftDropped float64
	if c.fft != nil {
		fftPackets = float64(c.fft.Packets())
		fftDropped = float64(c.fft.Dropped())
	}
	ch <- prometheus.MustNewConstMetric(c.fftPackets, prometheus.CounterValue, fftPackets)
	ch <- prometheus.MustNewConstMetric(c.fftDropped, prometheus.CounterValue, fftDropped)

	if c.streamer != nil {
		snap := c.streamer.Counters.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.dispatchUDPPackets, prometheus.CounterValue, float64(snap.PacketsUDPSent))
		ch <- prometheus.MustNewConstMetric(c.dispatchTCPPackets, prometheus.CounterValue, float64(snap.PacketsTCPSent))
		ch <- prometheus.MustNewConstMetric(c.dispatchUDPBytes, prometheus.CounterValue, float64(snap.BytesUDPSent))
		ch <- prometheus.MustNewConstMetric(c.dispatchTCPBytes, prometheus.CounterValue, float64(snap.BytesTCPSent))
		ch <- prometheus.MustNewConstMetric(c.dispatchUDPErrors, prometheus.CounterValue, float64(snap.UDPErrors))
		ch <- prometheus.MustNewConstMetric(c.dispatchTCPErrors, prometheus.CounterValue, float64(snap.TCPErrors))
		ch <- prometheus.MustNewConstMetric(c.dispatchCallsStarted, prometheus.CounterValue, float64(snap.CallsStarted))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dispatchUDPPackets, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dispatchTCPPackets, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dispatchUDPBytes, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dispatchTCPBytes, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dispatchUDPErrors, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dispatchTCPErrors, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dispatchCallsStarted, prometheus.CounterValue, 0)
	}

	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
