package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/peersync/internal/models"
)

type PostgresVersionLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresVersionLedger(pool *pgxpool.Pool) *PostgresVersionLedger {
	return &PostgresVersionLedger{pool: pool}
}

func (r *PostgresVersionLedger) Get(ctx context.Context, tableName, rowID string) (*models.VersionRecord, error) {
	query := `SELECT table_name, row_id, peer_id, version, timestamp
	          FROM sync_versions
	          WHERE table_name = $1 AND row_id = $2`

	var record models.VersionRecord
	err := r.pool.QueryRow(ctx, query, tableName, rowID).Scan(
		&record.TableName,
		&record.RowID,
		&record.PeerID,
		&record.Version,
		&record.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version record: %w", err)
	}
	record.Timestamp = record.Timestamp.UTC()
	return &record, nil
}

func (r *PostgresVersionLedger) Put(ctx context.Context, record *models.VersionRecord) error {
	query := `INSERT INTO sync_versions (table_name, row_id, peer_id, version, timestamp)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (table_name, row_id) DO UPDATE SET
	              peer_id = EXCLUDED.peer_id,
	              version = EXCLUDED.version,
	              timestamp = EXCLUDED.timestamp`

	_, err := r.pool.Exec(ctx, query,
		record.TableName,
		record.RowID,
		record.PeerID,
		record.Version,
		record.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to put version record: %w", err)
	}
	return nil
}
