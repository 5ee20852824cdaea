package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/redis/go-redis/v9"
)

const syncStatePrefix = "syncstate:"
const syncStateIndexKey = "syncstate:peers"

// RedisSyncStateRepository mirrors per-peer sync state in Redis so several
// processes of the same peer can observe one another's rounds.
type RedisSyncStateRepository struct {
	client *redis.Client
}

func NewRedisSyncStateRepository(client *redis.Client) *RedisSyncStateRepository {
	return &RedisSyncStateRepository{client: client}
}

func (r *RedisSyncStateRepository) Get(ctx context.Context, peerID string) (*models.SyncState, error) {
	jsonData, err := r.client.Get(ctx, syncStatePrefix+peerID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	var state models.SyncState
	if err := json.Unmarshal([]byte(jsonData), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}
	return &state, nil
}

func (r *RedisSyncStateRepository) Put(ctx context.Context, state *models.SyncState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	if err := r.client.Set(ctx, syncStatePrefix+state.PeerID, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set sync state: %w", err)
	}
	if err := r.client.SAdd(ctx, syncStateIndexKey, state.PeerID).Err(); err != nil {
		return fmt.Errorf("failed to index sync state: %w", err)
	}
	return nil
}

func (r *RedisSyncStateRepository) List(ctx context.Context) ([]*models.SyncState, error) {
	peerIDs, err := r.client.SMembers(ctx, syncStateIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sync state peers: %w", err)
	}

	var states []*models.SyncState
	var staleIDs []interface{}
	for _, peerID := range peerIDs {
		state, err := r.Get(ctx, peerID)
		if err == ErrNotFound {
			staleIDs = append(staleIDs, peerID)
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}

	// Clean up index entries whose state key is gone
	if len(staleIDs) > 0 {
		if err := r.client.SRem(ctx, syncStateIndexKey, staleIDs...).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove stale sync state index entries: %w", err)
		}
	}
	return states, nil
}
