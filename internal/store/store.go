// Package store is the relational persistence layer for calls, call
// sources, talkgroups, channels, and system configuration (spec.md §6.6).
package store

import (
	"context"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Store wraps a pooled Postgres connection. Reads and writes go straight
// to the pool; the store does not serialize writes, so concurrent callers
// may write at the same time.
type Store struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens the pool and applies the schema if this is a fresh database.
func Connect(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("dsn", maskDSN(dsn)).
		Int32("max_conns", cfg.MaxConns).
		Msg("persistence store connected")

	return &Store{Pool: pool, log: log}, nil
}

// InitSchema creates the schema on a fresh database. No-op if already applied.
func (s *Store) InitSchema(ctx context.Context) error {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'calls')`,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		s.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	s.log.Info().Msg("fresh database detected — applying schema")
	if _, err := s.Pool.Exec(ctx, SchemaSQL); err != nil {
		return err
	}
	s.log.Info().Msg("schema applied successfully")
	return nil
}

// HealthCheck reports whether the pool can reach the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.log.Info().Msg("closing persistence store")
	s.Pool.Close()
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
