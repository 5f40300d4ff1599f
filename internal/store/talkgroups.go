package store

import "context"

// UpsertTalkgroup inserts or updates a talkgroup on the trunked end of the
// correlator, never overwriting good data with empty strings.
func (s *Store) UpsertTalkgroup(ctx context.Context, id int, alphaTag, description, groupName, groupTag, mode string, updatedAt int64) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO talkgroups (id, alpha_tag, description, group_name, group_tag, mode, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			alpha_tag   = COALESCE(NULLIF($2, ''), talkgroups.alpha_tag),
			description = COALESCE(NULLIF($3, ''), talkgroups.description),
			group_name  = COALESCE(NULLIF($4, ''), talkgroups.group_name),
			group_tag   = COALESCE(NULLIF($5, ''), talkgroups.group_tag),
			mode        = COALESCE(NULLIF($6, ''), talkgroups.mode),
			updated_at  = $7
	`, id, alphaTag, description, groupName, groupTag, mode, updatedAt)
	return err
}

// Talkgroup is a row from the talkgroups table, used by the metadata cache.
type Talkgroup struct {
	ID          int
	AlphaTag    string
	Description string
	GroupName   string
	GroupTag    string
	Mode        string
}

// GetTalkgroup looks up a talkgroup by ID. Returns nil, nil if not found.
func (s *Store) GetTalkgroup(ctx context.Context, id int) (*Talkgroup, error) {
	tg := &Talkgroup{ID: id}
	err := s.Pool.QueryRow(ctx, `
		SELECT alpha_tag, description, group_name, group_tag, mode
		FROM talkgroups WHERE id = $1
	`, id).Scan(&tg.AlphaTag, &tg.Description, &tg.GroupName, &tg.GroupTag, &tg.Mode)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return tg, nil
}
