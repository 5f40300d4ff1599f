package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Call is the canonical persisted representation of one call lifecycle,
// keyed by the derived call ID (spec.md §4.F).
type Call struct {
	ID          string
	TalkgroupID int
	Frequency   int64
	StartTime   int64
	StopTime    *int64
	Duration    *float64
	Emergency   bool
	Encrypted   bool
	AudioFile   *string
	AudioType   *string
	SystemType  string
	ChannelID   *int64
	CreatedAt   int64
}

// CallSource is one source transmission within a call's src_list.
type CallSource struct {
	SourceID  int
	Timestamp int64
	Position  float64
	Emergency bool
	Tag       *string
}

// UpsertCall inserts a call or replaces it in place when the same ID is
// observed again (e.g. a status-endpoint call_end following an earlier
// call_start for the same call).
func (s *Store) UpsertCall(ctx context.Context, c *Call) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO calls (
			id, talkgroup_id, frequency, start_time, stop_time, duration,
			emergency, encrypted, audio_file, audio_type, system_type,
			channel_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (id) DO UPDATE SET
			talkgroup_id = EXCLUDED.talkgroup_id,
			frequency    = EXCLUDED.frequency,
			stop_time    = COALESCE(EXCLUDED.stop_time, calls.stop_time),
			duration     = COALESCE(EXCLUDED.duration, calls.duration),
			emergency    = EXCLUDED.emergency OR calls.emergency,
			encrypted    = EXCLUDED.encrypted OR calls.encrypted,
			audio_file   = COALESCE(EXCLUDED.audio_file, calls.audio_file),
			audio_type   = COALESCE(EXCLUDED.audio_type, calls.audio_type),
			channel_id   = COALESCE(EXCLUDED.channel_id, calls.channel_id)
	`,
		c.ID, c.TalkgroupID, c.Frequency, c.StartTime, c.StopTime, c.Duration,
		c.Emergency, c.Encrypted, c.AudioFile, c.AudioType, c.SystemType,
		c.ChannelID, c.CreatedAt,
	)
	return err
}

// InsertCallSources bulk-inserts a call's source transmissions in a single
// transaction, per spec.md §4.F.
func (s *Store) InsertCallSources(ctx context.Context, callID string, sources []CallSource) error {
	if len(sources) == 0 {
		return nil
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, src := range sources {
		batch.Queue(`
			INSERT INTO call_sources (call_id, source_id, timestamp, position, emergency, tag)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, callID, src.SourceID, src.Timestamp, src.Position, src.Emergency, src.Tag)
	}

	br := tx.SendBatch(ctx, batch)
	for range sources {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetCall fetches a call by its canonical ID, used by the correlator's
// reconciliation pass to detect duplicate call_end/sidecar arrivals.
func (s *Store) GetCall(ctx context.Context, id string) (*Call, error) {
	c := &Call{ID: id}
	err := s.Pool.QueryRow(ctx, `
		SELECT talkgroup_id, frequency, start_time, stop_time, duration,
			emergency, encrypted, audio_file, audio_type, system_type,
			channel_id, created_at
		FROM calls WHERE id = $1
	`, id).Scan(
		&c.TalkgroupID, &c.Frequency, &c.StartTime, &c.StopTime, &c.Duration,
		&c.Emergency, &c.Encrypted, &c.AudioFile, &c.AudioType, &c.SystemType,
		&c.ChannelID, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
