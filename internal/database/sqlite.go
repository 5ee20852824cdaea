package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_operations (
	op_id      TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	operation  TEXT NOT NULL,
	row_id     TEXT NOT NULL,
	data       TEXT,
	timestamp  TEXT NOT NULL,
	peer_id    TEXT NOT NULL,
	version    INTEGER NOT NULL,
	team_id    TEXT,
	signature  BLOB,
	synced     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sync_operations_pending
	ON sync_operations (synced, peer_id);

CREATE TABLE IF NOT EXISTS sync_versions (
	table_name TEXT NOT NULL,
	row_id     TEXT NOT NULL,
	peer_id    TEXT NOT NULL,
	version    INTEGER NOT NULL,
	timestamp  TEXT NOT NULL,
	PRIMARY KEY (table_name, row_id)
);
`

// NewSQLiteDB opens (or creates) the embedded store and ensures the sync
// bookkeeping tables exist. Use ":memory:" for tests.
func NewSQLiteDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	// The modernc driver serializes access per connection; a single
	// connection avoids SQLITE_BUSY between concurrent sync rounds.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating sync schema: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging sqlite database: %w", err)
	}

	return db, nil
}
