package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRowStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRowStore(pool *pgxpool.Pool) *PostgresRowStore {
	return &PostgresRowStore{pool: pool}
}

func (r *PostgresRowStore) Upsert(ctx context.Context, tableName, rowID string, columns []string, values []any) error {
	cols := append([]string{"id"}, columns...)

	placeholders := make([]string, len(cols))
	sets := make([]string, len(columns))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		tableName, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "))
	if len(columns) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, tableName)
	}

	args := append([]any{rowID}, values...)
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert row: %w", err)
	}
	return nil
}

func (r *PostgresRowStore) Update(ctx context.Context, tableName, rowID string, columns []string, values []any) error {
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`,
		tableName, strings.Join(sets, ", "), len(columns)+1)

	args := append(append([]any{}, values...), rowID)
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update row: %w", err)
	}
	return nil
}

func (r *PostgresRowStore) Delete(ctx context.Context, tableName, rowID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tableName)
	if _, err := r.pool.Exec(ctx, query, rowID); err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}
