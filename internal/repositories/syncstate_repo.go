package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/prudhvinik1/peersync/internal/models"
)

// MemorySyncStateRepository is the default SyncState store. Sync state is
// derivable from the operation log, so losing it on restart only resets
// counters; deployments that want it shared across processes use the Redis
// mirror instead.
type MemorySyncStateRepository struct {
	mu     sync.RWMutex
	states map[string]*models.SyncState
}

func NewMemorySyncStateRepository() *MemorySyncStateRepository {
	return &MemorySyncStateRepository{states: make(map[string]*models.SyncState)}
}

func (r *MemorySyncStateRepository) Get(ctx context.Context, peerID string) (*models.SyncState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[peerID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (r *MemorySyncStateRepository) Put(ctx context.Context, state *models.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.PeerID] = state.Clone()
	return nil
}

func (r *MemorySyncStateRepository) List(ctx context.Context) ([]*models.SyncState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.SyncState, 0, len(r.states))
	for _, state := range r.states {
		out = append(out, state.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out, nil
}
