package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/peersync/internal/models"
)

type PostgresOperationLog struct {
	pool *pgxpool.Pool
}

func NewPostgresOperationLog(pool *pgxpool.Pool) *PostgresOperationLog {
	return &PostgresOperationLog{pool: pool}
}

func (r *PostgresOperationLog) Append(ctx context.Context, op *models.SyncOperation, synced bool) error {
	dataJSON, err := marshalOpData(op)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_operations
	          (op_id, table_name, operation, row_id, data, timestamp, peer_id, version, team_id, signature, synced)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.pool.Exec(ctx, query,
		op.OpID,
		op.TableName,
		string(op.Operation),
		op.RowID,
		dataJSON,
		op.Timestamp.UTC(),
		op.PeerID,
		op.Version,
		nullableString(op.TeamID),
		op.Signature,
		synced,
	)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

func (r *PostgresOperationLog) Exists(ctx context.Context, opID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sync_operations WHERE op_id = $1)`, opID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check operation existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresOperationLog) LoadPending(ctx context.Context, localPeerID string) ([]*models.SyncOperation, error) {
	query := `SELECT op_id, table_name, operation, row_id, data, timestamp, peer_id, version, team_id, signature
	          FROM sync_operations
	          WHERE synced = FALSE AND peer_id = $1
	          ORDER BY version ASC`

	rows, err := r.pool.Query(ctx, query, localPeerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.SyncOperation
	for rows.Next() {
		op, err := scanPgOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending operations: %w", err)
	}
	return ops, nil
}

func (r *PostgresOperationLog) MarkSynced(ctx context.Context, opIDs []string) error {
	if len(opIDs) == 0 {
		return nil
	}
	query := `UPDATE sync_operations SET synced = TRUE WHERE op_id = ANY($1)`
	if _, err := r.pool.Exec(ctx, query, opIDs); err != nil {
		return fmt.Errorf("failed to mark operations synced: %w", err)
	}
	return nil
}

func (r *PostgresOperationLog) MaxLocalVersion(ctx context.Context, localPeerID string) (int64, error) {
	var max int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM sync_operations WHERE peer_id = $1`, localPeerID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max version: %w", err)
	}
	return max, nil
}

func scanPgOperation(rows pgx.Rows) (*models.SyncOperation, error) {
	var op models.SyncOperation
	var operation string
	var dataJSON, teamID *string

	err := rows.Scan(
		&op.OpID,
		&op.TableName,
		&operation,
		&op.RowID,
		&dataJSON,
		&op.Timestamp,
		&op.PeerID,
		&op.Version,
		&teamID,
		&op.Signature,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	op.Operation = models.OpType(operation)
	op.Timestamp = op.Timestamp.UTC()
	if teamID != nil {
		op.TeamID = *teamID
	}
	if dataJSON != nil && *dataJSON != "" {
		data := models.NewRowData()
		if err := data.UnmarshalJSON([]byte(*dataJSON)); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation data: %w", err)
		}
		op.Data = data
	}
	return &op, nil
}
