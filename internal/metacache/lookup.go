package metacache

import (
	"context"
	"time"

	"github.com/lumenprima/scannerd/internal/store"
)

// Lookup bundles the talkgroup and channel caches the correlator and
// audio ingest components read through on every enrichment pass.
type Lookup struct {
	Talkgroups *Cache[int, *store.Talkgroup]
	Channels   *Cache[int64, *store.Channel]
}

// NewLookup wires both caches to the given store.
func NewLookup(s *store.Store) *Lookup {
	return &Lookup{
		Talkgroups: New(func(ctx context.Context, id int) (*store.Talkgroup, bool, error) {
			tg, err := s.GetTalkgroup(ctx, id)
			if err != nil {
				return nil, false, err
			}
			return tg, tg != nil, nil
		}),
		Channels: New(func(ctx context.Context, freq int64) (*store.Channel, bool, error) {
			ch, err := s.GetOrCreateChannel(ctx, freq, "conventional", time.Now().Unix())
			if err != nil {
				return nil, false, err
			}
			return ch, ch != nil, nil
		}),
	}
}
