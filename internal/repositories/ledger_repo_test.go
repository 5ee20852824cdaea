package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionLedger_GetAbsent(t *testing.T) {
	db := getTestDB(t)
	ledger := NewSQLiteVersionLedger(db)

	_, err := ledger.Get(context.Background(), "notes", "row-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVersionLedger_PutThenGet(t *testing.T) {
	db := getTestDB(t)
	ledger := NewSQLiteVersionLedger(db)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, ledger.Put(ctx, &models.VersionRecord{
		TableName: "notes",
		RowID:     "row-1",
		PeerID:    "peer-a",
		Version:   3,
		Timestamp: ts,
	}))

	record, err := ledger.Get(ctx, "notes", "row-1")
	require.NoError(t, err)
	assert.Equal(t, "peer-a", record.PeerID)
	assert.Equal(t, int64(3), record.Version)
	assert.True(t, ts.Equal(record.Timestamp))
}

func TestVersionLedger_PutOverwritesWinner(t *testing.T) {
	db := getTestDB(t)
	ledger := NewSQLiteVersionLedger(db)
	ctx := context.Background()

	first := &models.VersionRecord{
		TableName: "notes", RowID: "row-1",
		PeerID: "peer-a", Version: 1, Timestamp: time.Now().UTC(),
	}
	require.NoError(t, ledger.Put(ctx, first))

	second := &models.VersionRecord{
		TableName: "notes", RowID: "row-1",
		PeerID: "peer-b", Version: 7, Timestamp: time.Now().UTC().Add(time.Second),
	}
	require.NoError(t, ledger.Put(ctx, second))

	record, err := ledger.Get(ctx, "notes", "row-1")
	require.NoError(t, err)
	assert.Equal(t, "peer-b", record.PeerID)
	assert.Equal(t, int64(7), record.Version)
}

func TestVersionLedger_KeyedByTableAndRow(t *testing.T) {
	db := getTestDB(t)
	ledger := NewSQLiteVersionLedger(db)
	ctx := context.Background()

	require.NoError(t, ledger.Put(ctx, &models.VersionRecord{
		TableName: "notes", RowID: "row-1",
		PeerID: "peer-a", Version: 1, Timestamp: time.Now().UTC(),
	}))

	_, err := ledger.Get(ctx, "folders", "row-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ledger.Get(ctx, "notes", "row-2")
	assert.ErrorIs(t, err, ErrNotFound)
}
