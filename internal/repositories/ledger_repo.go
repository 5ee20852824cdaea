package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/peersync/internal/models"
)

type SQLiteVersionLedger struct {
	db *sql.DB
}

func NewSQLiteVersionLedger(db *sql.DB) *SQLiteVersionLedger {
	return &SQLiteVersionLedger{db: db}
}

func (r *SQLiteVersionLedger) Get(ctx context.Context, tableName, rowID string) (*models.VersionRecord, error) {
	query := `SELECT table_name, row_id, peer_id, version, timestamp
	          FROM sync_versions
	          WHERE table_name = ? AND row_id = ?`

	var record models.VersionRecord
	var timestamp string
	err := r.db.QueryRowContext(ctx, query, tableName, rowID).Scan(
		&record.TableName,
		&record.RowID,
		&record.PeerID,
		&record.Version,
		&timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version record: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version timestamp: %w", err)
	}
	record.Timestamp = ts.UTC()
	return &record, nil
}

func (r *SQLiteVersionLedger) Put(ctx context.Context, record *models.VersionRecord) error {
	query := `INSERT INTO sync_versions (table_name, row_id, peer_id, version, timestamp)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT (table_name, row_id) DO UPDATE SET
	              peer_id = excluded.peer_id,
	              version = excluded.version,
	              timestamp = excluded.timestamp`

	_, err := r.db.ExecContext(ctx, query,
		record.TableName,
		record.RowID,
		record.PeerID,
		record.Version,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put version record: %w", err)
	}
	return nil
}
