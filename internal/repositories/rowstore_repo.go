package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteRowStore mutates host tables. Identifier validation happens in the
// applier before any call lands here; this type only assembles parameterized
// statements from already-vetted names.
type SQLiteRowStore struct {
	db *sql.DB
}

func NewSQLiteRowStore(db *sql.DB) *SQLiteRowStore {
	return &SQLiteRowStore{db: db}
}

func (r *SQLiteRowStore) Upsert(ctx context.Context, tableName, rowID string, columns []string, values []any) error {
	cols := append([]string{"id"}, columns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`,
		tableName, strings.Join(cols, ", "), placeholders)

	args := append([]any{rowID}, values...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert row: %w", err)
	}
	return nil
}

func (r *SQLiteRowStore) Update(ctx context.Context, tableName, rowID string, columns []string, values []any) error {
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = col + " = ?"
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, tableName, strings.Join(sets, ", "))

	args := append(append([]any{}, values...), rowID)
	// Zero rows affected is fine: updating an already-deleted row is a no-op
	// under LWW.
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update row: %w", err)
	}
	return nil
}

func (r *SQLiteRowStore) Delete(ctx context.Context, tableName, rowID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tableName)
	if _, err := r.db.ExecContext(ctx, query, rowID); err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}
