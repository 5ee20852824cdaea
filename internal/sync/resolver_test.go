package sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/peersync/internal/database"
	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_NoPriorWriterApplies(t *testing.T) {
	db := getTestDB(t)
	resolver := NewResolver(repositories.NewSQLiteVersionLedger(db))

	op := remoteOp("peer-a", "notes", "row-1", time.Now().UTC())
	ok, err := resolver.ShouldApply(context.Background(), op)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolver_NewerTimestampWins(t *testing.T) {
	db := getTestDB(t)
	ledger := repositories.NewSQLiteVersionLedger(db)
	resolver := NewResolver(ledger)
	ctx := context.Background()

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Put(ctx, &models.VersionRecord{
		TableName: "notes", RowID: "row-1", PeerID: "peer-a", Version: 1, Timestamp: t1,
	}))

	newer := remoteOp("peer-b", "notes", "row-1", t1.Add(time.Second))
	ok, err := resolver.ShouldApply(ctx, newer)
	require.NoError(t, err)
	assert.True(t, ok)

	older := remoteOp("peer-b", "notes", "row-1", t1.Add(-time.Second))
	ok, err = resolver.ShouldApply(ctx, older)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Equal timestamps favor the already-applied writer so resolution stays
// deterministic regardless of processing order.
func TestResolver_EqualTimestampRejects(t *testing.T) {
	db := getTestDB(t)
	ledger := repositories.NewSQLiteVersionLedger(db)
	resolver := NewResolver(ledger)
	ctx := context.Background()

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Put(ctx, &models.VersionRecord{
		TableName: "notes", RowID: "row-1", PeerID: "peer-a", Version: 1, Timestamp: t1,
	}))

	tied := remoteOp("peer-b", "notes", "row-1", t1)
	ok, err := resolver.ShouldApply(ctx, tied)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_PerRowScope(t *testing.T) {
	db := getTestDB(t)
	ledger := repositories.NewSQLiteVersionLedger(db)
	resolver := NewResolver(ledger)
	ctx := context.Background()

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Put(ctx, &models.VersionRecord{
		TableName: "notes", RowID: "row-1", PeerID: "peer-a", Version: 1, Timestamp: t1,
	}))

	// A different row is unaffected by row-1's ledger entry
	other := remoteOp("peer-b", "notes", "row-2", t1.Add(-time.Hour))
	ok, err := resolver.ShouldApply(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Helper functions for test setup

func getTestDB(t *testing.T) *sql.DB {
	db, err := database.NewSQLiteDB(context.Background(), ":memory:")
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func remoteOp(peerID, table, rowID string, ts time.Time) *models.SyncOperation {
	return &models.SyncOperation{
		OpID:      uuid.New().String(),
		TableName: table,
		Operation: models.OpInsert,
		RowID:     rowID,
		Data:      models.RowDataFrom("title", "T"),
		Timestamp: ts,
		PeerID:    peerID,
		Version:   1,
	}
}
