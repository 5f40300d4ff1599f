// Package config loads scannerd's runtime configuration from environment
// variables, an optional .env file, and CLI flag overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-tunable settings for scannerd.
type Config struct {
	// HTTP / broadcast hub
	HTTPAddr     string        `env:"PORT" envDefault:":3000"`
	Host         string        `env:"HOST" envDefault:"0.0.0.0"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	CORSOrigins  string        `env:"CORS_ORIGINS"`
	RateLimitRPS   float64     `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int         `env:"RATE_LIMIT_BURST" envDefault:"40"`
	LogLevel       string      `env:"LOG_LEVEL" envDefault:"info"`
	AuthToken      string      `env:"AUTH_TOKEN"`
	MetricsEnabled bool        `env:"METRICS_ENABLED" envDefault:"true"`

	// Ingest transports
	AudioPort  int    `env:"TR_AUDIO_PORT" envDefault:"9000"`
	FFTPort    int    `env:"TR_FFT_PORT" envDefault:"9001"`
	StatusAddr string `env:"TR_STATUS_URL" envDefault:":3001"`
	AudioDir   string `env:"TR_AUDIO_DIR" envDefault:"./audio"`

	// Log tailer
	LogPathPrimary   string `env:"TR_LOG_PATH_PRIMARY" envDefault:"/tmp/trunk-recorder-output.log"`
	LogPathFallback  string `env:"TR_LOG_PATH_FALLBACK" envDefault:"/tmp/trunk-recorder.log"`
	LogRingSize      int    `env:"TR_LOG_RING_SIZE" envDefault:"200"`

	// Recording directory watcher
	WatchDir string `env:"TR_WATCH_DIR" envDefault:"./audio"`

	// Persistence
	DBPath string `env:"DB_PATH"`

	// Channel tracker / SDR defaults
	SDRCenterFreq   int64 `env:"SDR_CENTER_FREQ"`
	SDRSampleRate   int   `env:"SDR_SAMPLE_RATE" envDefault:"2048000"`

	// Downstream dispatch console (AVTEC-style UDP+TCP forwarding)
	AvtecHost    string `env:"AVTEC_HOST"`
	AvtecPort    int    `env:"AVTEC_PORT" envDefault:"9500"`
	AvtecUDPPort int    `env:"AVTEC_UDP_PORT" envDefault:"9501"`
	AvtecEnabled bool   `env:"AVTEC_ENABLED" envDefault:"false"`

	// Recorder / replayer
	RecordingsDir      string        `env:"TR_RECORDINGS_DIR" envDefault:"./recordings"`
	RecordingRetention time.Duration `env:"TR_RECORDING_RETENTION" envDefault:"168h"`
	RecordingMaxBytes  int64         `env:"TR_RECORDING_MAX_BYTES" envDefault:"0"`

	// Broadcast hub resource limits
	SubscriberQueueSize  int           `env:"SUBSCRIBER_QUEUE_SIZE" envDefault:"256"`
	SlowConsumerWindow   time.Duration `env:"SLOW_CONSUMER_WINDOW" envDefault:"5s"`
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must be set")
	}
	if c.AvtecEnabled && c.AvtecHost == "" {
		return fmt.Errorf("AVTEC_ENABLED=true requires AVTEC_HOST")
	}
	return nil
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
	DBPath   string
}

// Load reads configuration from a .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file > struct
// defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DBPath != "" {
		cfg.DBPath = overrides.DBPath
	}

	return cfg, nil
}
