// Package postgres provides Postgres-backed persistence for messages,
// attachments, and the sync cursor.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tgmirror/internal/mirror"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store implements mirror.MessageStore, mirror.AttachmentStore, and
// mirror.CursorStore on one connection pool.
type Store struct {
	db    DB
	close func()
}

// NewStore connects a pgx pool using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// NewStoreWithDB constructs a store from an existing pool, primarily for
// testing with pgxmock.
func NewStoreWithDB(db DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db, close: func() {}}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.close()
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	source_id  BIGINT NOT NULL UNIQUE,
	text       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id          BIGSERIAL PRIMARY KEY,
	source_url  TEXT NOT NULL UNIQUE,
	storage_key TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	extension   TEXT NOT NULL DEFAULT '',
	size_bytes  BIGINT NOT NULL DEFAULT 0,
	message_id  BIGINT REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS global_vars (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return classify("ensure schema", err)
	}
	return nil
}

// classify wraps store errors with the pipeline's error categories:
// connectivity and resource failures become ErrStoreUnavailable (fatal),
// uniqueness violations become ErrUnexpectedConflict, and anything else is
// a plain per-record error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%s: %w", op, errors.Join(mirror.ErrUnexpectedConflict, err))
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53" || pgErr.Code[:2] == "57"):
			return fmt.Errorf("%s: %w", op, errors.Join(mirror.ErrStoreUnavailable, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w", op, errors.Join(mirror.ErrStoreUnavailable, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
