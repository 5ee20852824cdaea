package sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplier_InsertRecordsVersion(t *testing.T) {
	db, applier, ledger := newTestApplier(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	op := remoteOp("peer-a", "notes", "1", ts)
	op.Version = 5

	require.NoError(t, applier.Apply(ctx, op))
	assert.Equal(t, "T", queryTitle(t, db, "1"))

	record, err := ledger.Get(ctx, "notes", "1")
	require.NoError(t, err)
	assert.Equal(t, "peer-a", record.PeerID)
	assert.Equal(t, int64(5), record.Version)
	assert.True(t, ts.Equal(record.Timestamp))
}

func TestApplier_UpdateAbsentRowSucceeds(t *testing.T) {
	_, applier, ledger := newTestApplier(t)
	ctx := context.Background()

	op := remoteOp("peer-a", "notes", "ghost", time.Now().UTC())
	op.Operation = models.OpUpdate

	// An update to an already-deleted row is harmless under LWW, and still
	// advances the ledger so older writes keep losing.
	require.NoError(t, applier.Apply(ctx, op))
	_, err := ledger.Get(ctx, "notes", "ghost")
	assert.NoError(t, err)
}

func TestApplier_Delete(t *testing.T) {
	db, applier, _ := newTestApplier(t)
	ctx := context.Background()

	require.NoError(t, applier.Apply(ctx, remoteOp("peer-a", "notes", "1", time.Now().UTC())))

	del := remoteOp("peer-a", "notes", "1", time.Now().UTC().Add(time.Second))
	del.Operation = models.OpDelete
	del.Data = nil
	require.NoError(t, applier.Apply(ctx, del))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM notes`).Scan(&count))
	assert.Equal(t, 0, count)
}

// Column names that are not plain identifiers must never reach query
// construction.
func TestApplier_RejectsInjectionColumn(t *testing.T) {
	db, applier, ledger := newTestApplier(t)
	ctx := context.Background()

	for _, bad := range []string{
		"title; DROP TABLE notes",
		`title" TEXT`,
		"title'--",
		"tit le",
		"",
	} {
		op := remoteOp("peer-a", "notes", "1", time.Now().UTC())
		op.Data = models.RowDataFrom(bad, "x")
		assert.Error(t, applier.Apply(ctx, op), "column %q must be rejected", bad)
	}

	// Nothing was written
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM notes`).Scan(&count))
	assert.Equal(t, 0, count)
	_, err := ledger.Get(ctx, "notes", "1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestApplier_RejectsBadTableIdentifier(t *testing.T) {
	_, applier, _ := newTestApplier(t)

	op := remoteOp("peer-a", "notes; DROP TABLE notes", "1", time.Now().UTC())
	assert.Error(t, applier.Apply(context.Background(), op))
}

// A peer echoing the primary key inside data must not break the statement.
func TestApplier_SkipsIDColumnInData(t *testing.T) {
	db, applier, _ := newTestApplier(t)

	op := remoteOp("peer-a", "notes", "7", time.Now().UTC())
	op.Data = models.RowDataFrom("id", "7", "title", "kept")
	require.NoError(t, applier.Apply(context.Background(), op))
	assert.Equal(t, "kept", queryTitle(t, db, "7"))
}

func TestApplier_UnknownOperationType(t *testing.T) {
	_, applier, _ := newTestApplier(t)

	op := remoteOp("peer-a", "notes", "1", time.Now().UTC())
	op.Operation = models.OpType("truncate")
	assert.Error(t, applier.Apply(context.Background(), op))
}

// Helper functions for test setup

func newTestApplier(t *testing.T) (*sql.DB, *Applier, *repositories.SQLiteVersionLedger) {
	db := getTestDB(t)
	_, err := db.Exec(`CREATE TABLE notes (id TEXT PRIMARY KEY, title TEXT, body TEXT)`)
	require.NoError(t, err, "Failed to create notes table")

	ledger := repositories.NewSQLiteVersionLedger(db)
	return db, NewApplier(repositories.NewSQLiteRowStore(db), ledger), ledger
}

func queryTitle(t *testing.T, db *sql.DB, id string) string {
	var title string
	require.NoError(t, db.QueryRow(`SELECT title FROM notes WHERE id = ?`, id).Scan(&title))
	return title
}
