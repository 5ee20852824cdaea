package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StaticMembership is an in-memory team membership oracle, fed from config or
// tests.
type StaticMembership struct {
	mu      sync.RWMutex
	members map[string]map[string]bool // team_id -> user_id set
}

func NewStaticMembership() *StaticMembership {
	return &StaticMembership{members: make(map[string]map[string]bool)}
}

func (m *StaticMembership) AddMember(teamID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.members[teamID] == nil {
		m.members[teamID] = make(map[string]bool)
	}
	m.members[teamID][userID] = true
}

func (m *StaticMembership) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.members[teamID][userID], nil
}

const teamMembersPrefix = "team:%s:members"

// RedisMembership answers membership from Redis sets maintained by the host
// application.
type RedisMembership struct {
	client *redis.Client
}

func NewRedisMembership(client *redis.Client) *RedisMembership {
	return &RedisMembership{client: client}
}

func (m *RedisMembership) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	key := fmt.Sprintf(teamMembersPrefix, teamID)
	isMember, err := m.client.SIsMember(ctx, key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return isMember, nil
}
