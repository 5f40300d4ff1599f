package store

import "context"

// SystemType returns the configured system_type ("p25" or "conventional"),
// used by the correlator to branch between trunked and conventional
// call-ID derivation rules (spec.md §4.F).
func (s *Store) SystemType(ctx context.Context) (string, error) {
	var v string
	err := s.Pool.QueryRow(ctx, `SELECT value FROM system_config WHERE key = 'system_type'`).Scan(&v)
	if isNoRows(err) {
		return "p25", nil
	}
	return v, err
}

// SystemShortName returns the configured system_short_name.
func (s *Store) SystemShortName(ctx context.Context) (string, error) {
	var v string
	err := s.Pool.QueryRow(ctx, `SELECT value FROM system_config WHERE key = 'system_short_name'`).Scan(&v)
	if isNoRows(err) {
		return "default", nil
	}
	return v, err
}
