package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lumenprima/scannerd/internal/audioingest"
	"github.com/lumenprima/scannerd/internal/broadcast"
	"github.com/lumenprima/scannerd/internal/config"
	"github.com/lumenprima/scannerd/internal/correlator"
	"github.com/lumenprima/scannerd/internal/dispatch"
	"github.com/lumenprima/scannerd/internal/fftingest"
	"github.com/lumenprima/scannerd/internal/metrics"
	"github.com/lumenprima/scannerd/internal/store"
)

// Server is the minimal HTTP surface described in spec.md's ambient stack:
// health/readiness, the `/ws` broadcast endpoint, and a Prometheus scrape
// endpoint. No REST/CRUD surface is in scope.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions wires every component the health check and metrics
// collector read live state from. Config, Store and Hub must be non-nil;
// the other component pointers may be nil.
type ServerOptions struct {
	Config    *config.Config
	Store     *store.Store
	Hub       *broadcast.Hub
	Correlator *correlator.Correlator
	Audio     *audioingest.Listener
	FFT       *fftingest.Listener
	Streamer  *dispatch.Streamer
	StartTime time.Time
	Log       zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	var corsOrigins []string
	if opts.Config.CORSOrigins != "" {
		for _, o := range strings.Split(opts.Config.CORSOrigins, ",") {
			if s := strings.TrimSpace(o); s != "" {
				corsOrigins = append(corsOrigins, s)
			}
		}
	}

	r.Use(RequestID)
	r.Use(CORSWithOrigins(corsOrigins))
	r.Use(RateLimiter(opts.Config.RateLimitRPS, opts.Config.RateLimitBurst))
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))

	var dispatchStatus DispatchStatus
	if opts.Streamer != nil {
		dispatchStatus = opts.Streamer
	}
	health := NewHealthHandler(opts.Store, dispatchStatus, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)

	if opts.Config.MetricsEnabled {
		var pool *pgxpool.Pool
		if opts.Store != nil {
			pool = opts.Store.Pool
		}
		collector := metrics.NewCollector(pool, opts.Correlator, opts.Hub, opts.Audio, opts.FFT, opts.Streamer)
		prometheus.MustRegister(collector)
		r.Group(func(r chi.Router) {
			r.Use(metrics.InstrumentHandler)
			r.Get("/metrics", promhttp.Handler().ServeHTTP)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.Config.AuthToken))
		conn := broadcast.NewConn(opts.Hub, opts.Log)
		r.Get("/ws", conn.ServeHTTP)
	})

	srv := &http.Server{
		Addr:        opts.Config.HTTPAddr,
		Handler:     r,
		ReadTimeout: opts.Config.ReadTimeout,
		IdleTimeout: opts.Config.IdleTimeout,
		// WriteTimeout left at 0: the /ws connection is long-lived.
		WriteTimeout: 0,
	}

	return &Server{http: srv, log: opts.Log}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
