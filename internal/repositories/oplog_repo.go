package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prudhvinik1/peersync/internal/models"
)

type SQLiteOperationLog struct {
	db *sql.DB
}

func NewSQLiteOperationLog(db *sql.DB) *SQLiteOperationLog {
	return &SQLiteOperationLog{db: db}
}

func (r *SQLiteOperationLog) Append(ctx context.Context, op *models.SyncOperation, synced bool) error {
	dataJSON, err := marshalOpData(op)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_operations
	          (op_id, table_name, operation, row_id, data, timestamp, peer_id, version, team_id, signature, synced)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		op.OpID,
		op.TableName,
		string(op.Operation),
		op.RowID,
		dataJSON,
		op.Timestamp.UTC().Format(time.RFC3339Nano),
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

func (r *SQLiteOperationLog) Exists(ctx context.Context, opID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sync_operations WHERE op_id = ?`, opID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check operation existence: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteOperationLog) LoadPending(ctx context.Context, localPeerID string) ([]*models.SyncOperation, error) {
	query := `SELECT op_id, table_name, operation, row_id, data, timestamp, peer_id, version, team_id, signature
	          FROM sync_operations
	          WHERE synced = 0 AND peer_id = ?
	          ORDER BY version ASC`

	rows, err := r.db.QueryContext(ctx, query, localPeerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.SyncOperation
	for rows.Next() {
		op, err := scanOperation(rows)
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

func (r *SQLiteOperationLog) MarkSynced(ctx context.Context, opIDs []string) error {
	if len(opIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opIDs)), ",")
	query := fmt.Sprintf(`UPDATE sync_operations SET synced = 1 WHERE op_id IN (%s)`, placeholders)

	args := make([]any, len(opIDs))
	for i, id := range opIDs {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark operations synced: %w", err)
	}
	return nil
}

// MaxLocalVersion recovers the monotonic counter after a restart. Scoped to
// the local peer so replayed remote versions never inflate it.
func (r *SQLiteOperationLog) MaxLocalVersion(ctx context.Context, localPeerID string) (int64, error) {
	var max int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM sync_operations WHERE peer_id = ?`, localPeerID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max version: %w", err)
	}
	return max, nil
}

func scanOperation(rows *sql.Rows) (*models.SyncOperation, error) {
	var op models.SyncOperation
	var dataJSON, teamID sql.NullString
	var timestamp, operation string

	err := rows.Scan(
		&op.OpID,
		&op.TableName,
		&operation,
		&op.RowID,
		&dataJSON,
		&timestamp,
		&op.PeerID,
		&op.Version,
		&teamID,
		&op.Signature,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	op.Operation = models.OpType(operation)
	op.TeamID = teamID.String

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse operation timestamp: %w", err)
	}
	op.Timestamp = ts.UTC()

	if dataJSON.Valid && dataJSON.String != "" {
		data := models.NewRowData()
		if err := json.Unmarshal([]byte(dataJSON.String), data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation data: %w", err)
		}
		op.Data = data
	}
	return &op, nil
}

func marshalOpData(op *models.SyncOperation) (any, error) {
	if op.Data == nil {
		return nil, nil
	}
	raw, err := op.Data.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal operation data: %w", err)
	}
	return string(raw), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
