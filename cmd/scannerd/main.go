package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lumenprima/scannerd/internal/api"
	"github.com/lumenprima/scannerd/internal/audioingest"
	"github.com/lumenprima/scannerd/internal/broadcast"
	"github.com/lumenprima/scannerd/internal/config"
	"github.com/lumenprima/scannerd/internal/correlator"
	"github.com/lumenprima/scannerd/internal/dispatch"
	"github.com/lumenprima/scannerd/internal/fftingest"
	"github.com/lumenprima/scannerd/internal/fftrecorder"
	"github.com/lumenprima/scannerd/internal/logtail"
	"github.com/lumenprima/scannerd/internal/metacache"
	"github.com/lumenprima/scannerd/internal/recwatcher"
	"github.com/lumenprima/scannerd/internal/statusendpoint"
	"github.com/lumenprima/scannerd/internal/store"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// audioSampleRateHz is the fixed PCM sample rate of decoder audio frames
// forwarded downstream (P25 Phase 1/2 voice, not separately negotiated).
const audioSampleRateHz = 8000

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides PORT)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DBPath, "db", "", "Postgres connection string (overrides DB_PATH)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Str("log_level", level.String()).
		Msg("scannerd starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Persistence
	db, err := store.Connect(ctx, cfg.DBPath, log.With().Str("component", "store").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to persistence store")
	}
	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}

	systemType, err := db.SystemType(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read system_type, defaulting to p25")
		systemType = "p25"
	}
	log.Info().Str("system_type", systemType).Msg("system type resolved")
	log.Info().Int64("sdr_center_freq", cfg.SDRCenterFreq).Int("sdr_sample_rate", cfg.SDRSampleRate).Msg("sdr defaults loaded")

	lookup := metacache.NewLookup(db)
	tracker := metacache.NewChannelTracker()
	if cfg.SDRCenterFreq != 0 {
		tracker.SetControlChannels([]int64{cfg.SDRCenterFreq})
	}
	corr := correlator.New(db, lookup, tracker, cfg.AudioDir, systemType, log)

	// 2. Broadcast hub and downstream dispatch streamer, wired to the
	// correlator's canonical events before any ingest component starts.
	hub := broadcast.NewHub(log)
	streamer := dispatch.New(cfg.AvtecHost, cfg.AvtecPort, cfg.AvtecUDPPort, log)
	streamer.SetEnabled(cfg.AvtecEnabled)

	corr.Emit = func(e correlator.Event) {
		hub.HandleEvent(e)
		if e.Kind == "call_end" {
			if p, ok := e.Payload.(correlator.CallEndPayload); ok {
				streamer.EndCall(p.ID)
			}
		}
	}

	recorder, err := fftrecorder.New(cfg.RecordingsDir, log.With().Str("component", "fftrecorder").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fft recorder")
	}
	pruner := fftrecorder.NewPruner(cfg.RecordingsDir, cfg.RecordingRetention, cfg.RecordingMaxBytes, log)
	pruner.Start()
	defer pruner.Stop()

	// 3. Ingest components
	audio, err := audioingest.Listen(fmt.Sprintf(":%d", cfg.AudioPort), lookup, func() string { return systemType }, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind audio ingest socket")
	}
	defer audio.Close()
	audio.Sink = func(f audioingest.AudioFrame) {
		callID, _ := corr.ActiveIDForChannel(f.ChannelKey)
		hub.BroadcastAudioFrame(f.ChannelKey, int(f.Talkgroup), f.Frequency, callID, f.PCM)
		if callID != "" {
			streamer.ForwardFrame(callID, int(f.Talkgroup), f.Frequency, f.AlphaTag, audioSampleRateHz, f.PCM)
		}
	}

	fft, err := fftingest.Listen(fmt.Sprintf(":%d", cfg.FFTPort), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind fft ingest socket")
	}
	defer fft.Close()
	fft.Sink = func(p fftingest.FFTPacket) {
		hub.BroadcastFFTFrame(p.CenterFreq, fftingest.EncodeMagnitudes(p.Magnitudes))
		recorder.CaptureFFT(p.CenterFreq, int64(p.SampleRate), p.FFTSize, p.MinFreq, p.MaxFreq, p.Magnitudes)
	}

	tailer := logtail.New(cfg.LogPathPrimary, cfg.LogPathFallback, cfg.LogRingSize, log)
	tailer.Sink = func(e logtail.Event) {
		hub.ControlChannelUpdate(e)
		recorder.CaptureControlEvent(string(e.Kind), e.Talkgroup, e.TalkgroupTag, e.Frequency)
	}

	recw := recwatcher.New(cfg.WatchDir, log)
	recw.Sink = func(c recwatcher.Completion) {
		corr.HandleRecordingComplete(ctx, correlator.RecordingCompleteInput{
			Talkgroup: c.Sidecar.Talkgroup, TalkgroupTag: c.Sidecar.TalkgroupTag, Freq: c.Sidecar.Freq,
			StartTime: c.Sidecar.StartTime, StopTime: c.Sidecar.StopTime,
			Emergency: c.Sidecar.Emergency, Encrypted: c.Sidecar.Encrypted,
			AudioType: c.Sidecar.AudioType, CallLength: c.Sidecar.CallLength, AudioPath: c.AudioPath,
		})
	}
	if err := recw.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start recording directory watcher")
	}
	defer recw.Stop()
	recwDone := make(chan struct{})

	statusSrv, err := statusendpoint.Listen(cfg.StatusAddr, statusendpoint.Handlers{
		OnCallStart: func(m statusendpoint.CallStartMsg) {
			corr.HandleCallStart(ctx, correlator.CallStartInput{
				DecoderID: m.ID, Freq: m.Freq, Talkgroup: m.Talkgroup, TalkgroupTag: m.TalkgroupTag,
			})
		},
		OnCallEnd: func(m statusendpoint.CallEndMsg) {
			sources := make([]correlator.CallSourceInput, 0, len(m.SrcList))
			for _, s := range m.SrcList {
				sources = append(sources, correlator.CallSourceInput{
					Src: s.Src, Time: s.Time, Pos: s.Pos, Emergency: s.Emergency, Tag: s.Tag,
				})
			}
			corr.HandleCallEnd(ctx, correlator.CallEndInput{
				DecoderID: m.ID, Freq: m.Freq, Talkgroup: m.Talkgroup, TalkgroupTag: m.TalkgroupTag,
				TalkgroupDescription: m.TalkgroupDescription, TalkgroupGroup: m.TalkgroupGroup,
				StartTime: m.StartTime, StopTime: m.StopTime, Length: m.Length,
				Emergency: m.Emergency, Encrypted: m.Encrypted, Filename: m.Filename,
				AudioType: m.AudioType, Sources: sources,
			})
		},
		OnCallsActive: func(m statusendpoint.CallsActiveMsg) {
			ins := make([]correlator.ActiveCallInput, 0, len(m.Calls))
			for _, a := range m.Calls {
				ins = append(ins, correlator.ActiveCallInput{
					DecoderID: a.ID, Freq: a.Freq, Talkgroup: a.Talkgroup,
					TalkgroupTag: a.TalkgroupTag, ElapsedTime: a.ElapsedTime,
				})
			}
			corr.HandleCallsActive(ins)
		},
		OnRates: func(m statusendpoint.RatesMsg) {
			hub.RatesUpdate(m)
		},
		OnForward: func(kind string, raw json.RawMessage) {
			if kind == "systems" {
				hub.SystemChanged(raw)
			}
		},
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind decoder status socket")
	}

	// 4. HTTP surface
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:     cfg,
		Store:      db,
		Hub:        hub,
		Correlator: corr,
		Audio:      audio,
		FFT:        fft,
		Streamer:   streamer,
		StartTime:  startTime,
		Log:        httpLog,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return audio.Run(gctx) })
	g.Go(func() error { return fft.Run(gctx) })
	g.Go(func() error { return tailer.Run(gctx) })
	g.Go(func() error { return statusSrv.Run(gctx) })
	g.Go(func() error { return streamer.Run(gctx) })
	g.Go(func() error {
		recw.Run(recwDone)
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().
		Str("version", version).
		Dur("startup_ms", time.Since(startTime)).
		Msg("scannerd ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Reverse-order teardown (spec.md §4.K): stop accepting subscribers,
	// flush outbound queues, close sockets, close the file tailer, close
	// the persistence store last.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	hub.Shutdown(2 * time.Second)

	close(recwDone)
	stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := g.Wait(); err != nil {
			log.Error().Err(err).Msg("component stopped with error")
		}
	}()
	wg.Wait()

	db.Close()
	log.Info().Msg("scannerd stopped")
}
