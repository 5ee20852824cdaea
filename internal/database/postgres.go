package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	MaxConns        = 10
	MinConns        = 2
	MaxConnLifetime = 10 * time.Minute
	MaxConnIdleTime = 5 * time.Minute
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS sync_operations (
	op_id      TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	operation  TEXT NOT NULL,
	row_id     TEXT NOT NULL,
	data       JSONB,
	timestamp  TIMESTAMPTZ NOT NULL,
	peer_id    TEXT NOT NULL,
	version    BIGINT NOT NULL,
	team_id    TEXT,
	signature  BYTEA,
	synced     BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_sync_operations_pending
	ON sync_operations (synced, peer_id);

CREATE TABLE IF NOT EXISTS sync_versions (
	table_name TEXT NOT NULL,
	row_id     TEXT NOT NULL,
	peer_id    TEXT NOT NULL,
	version    BIGINT NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (table_name, row_id)
);
`

// NewPostgresPool connects the server-grade backend and ensures the sync
// bookkeeping tables exist.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgres config: %w", err)
	}

	// Configure the pool
	config.MaxConns = MaxConns
	config.MinConns = MinConns
	config.MaxConnLifetime = MaxConnLifetime
	config.MaxConnIdleTime = MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging postgres pool: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error creating sync schema: %w", err)
	}

	return pool, nil
}
