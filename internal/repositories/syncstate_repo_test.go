package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySyncState_GetAbsent(t *testing.T) {
	repo := NewMemorySyncStateRepository()

	_, err := repo.Get(context.Background(), "peer-x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySyncState_PutGetList(t *testing.T) {
	repo := NewMemorySyncStateRepository()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Put(ctx, &models.SyncState{
		PeerID:         "peer-b",
		LastSync:       &now,
		OperationsSent: 3,
		Status:         models.SyncStatusIdle,
	}))
	require.NoError(t, repo.Put(ctx, &models.SyncState{
		PeerID: "peer-a",
		Status: models.SyncStatusError,
	}))

	state, err := repo.Get(ctx, "peer-b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.OperationsSent)

	// Stored state is isolated from later caller mutation
	state.OperationsSent = 99
	again, err := repo.Get(ctx, "peer-b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.OperationsSent)

	states, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "peer-a", states[0].PeerID)
	assert.Equal(t, "peer-b", states[1].PeerID)
}

func TestStaticMembership(t *testing.T) {
	membership := NewStaticMembership()
	membership.AddMember("team-1", "user-1")
	ctx := context.Background()

	isMember, err := membership.IsMember(ctx, "team-1", "user-1")
	require.NoError(t, err)
	assert.True(t, isMember)

	isMember, err = membership.IsMember(ctx, "team-1", "user-2")
	require.NoError(t, err)
	assert.False(t, isMember)

	isMember, err = membership.IsMember(ctx, "team-2", "user-1")
	require.NoError(t, err)
	assert.False(t, isMember)
}
