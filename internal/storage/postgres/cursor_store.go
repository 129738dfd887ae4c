package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Get reads a named variable. The second return is false when the name has
// never been set.
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM global_vars WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("get variable", err)
	}
	return value, true, nil
}

// Set writes a named variable. Durable once the call returns; the
// orchestrator commits the sync cursor through this.
func (s *Store) Set(ctx context.Context, name, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO global_vars (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`, name, value)
	if err != nil {
		return classify("set variable", err)
	}
	return nil
}
