package store

import "context"

// Channel is a conventional-system frequency channel row.
type Channel struct {
	ID          int64
	Frequency   int64
	AlphaTag    string
	Description string
	GroupName   string
	GroupTag    string
	Mode        string
	SystemType  string
}

// GetOrCreateChannel looks up a channel by frequency on the conventional end
// of the correlator, creating a bare row on first sight per spec.md §4.F.
func (s *Store) GetOrCreateChannel(ctx context.Context, frequency int64, systemType string, updatedAt int64) (*Channel, error) {
	ch := &Channel{Frequency: frequency}
	err := s.Pool.QueryRow(ctx, `
		SELECT id, alpha_tag, description, group_name, group_tag, mode, system_type
		FROM channels WHERE frequency = $1
	`, frequency).Scan(&ch.ID, &ch.AlphaTag, &ch.Description, &ch.GroupName, &ch.GroupTag, &ch.Mode, &ch.SystemType)
	if err == nil {
		return ch, nil
	}
	if !isNoRows(err) {
		return nil, err
	}

	err = s.Pool.QueryRow(ctx, `
		INSERT INTO channels (frequency, system_type, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (frequency) DO UPDATE SET updated_at = $3
		RETURNING id, alpha_tag, description, group_name, group_tag, mode, system_type
	`, frequency, systemType, updatedAt).Scan(
		&ch.ID, &ch.AlphaTag, &ch.Description, &ch.GroupName, &ch.GroupTag, &ch.Mode, &ch.SystemType,
	)
	if err != nil {
		return nil, err
	}
	return ch, nil
}
