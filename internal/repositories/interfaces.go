package repositories

import (
	"context"
	"errors"

	"github.com/prudhvinik1/peersync/internal/models"
)

var ErrNotFound = errors.New("not found")

// OperationLogRepository is the durable, append-only record of sync operations
// plus the bookkeeping the engine needs to survive restarts. Remote operations
// are recorded with synced=true so the log doubles as replay/audit history;
// only local unsynced operations ever come back from LoadPending.
type OperationLogRepository interface {
	Append(ctx context.Context, op *models.SyncOperation, synced bool) error
	Exists(ctx context.Context, opID string) (bool, error)
	LoadPending(ctx context.Context, localPeerID string) ([]*models.SyncOperation, error)
	MarkSynced(ctx context.Context, opIDs []string) error
	MaxLocalVersion(ctx context.Context, localPeerID string) (int64, error)
}

// VersionLedgerRepository stores the winning (peer_id, version, timestamp) per
// (table_name, row_id). Get returns ErrNotFound when no writer is recorded.
type VersionLedgerRepository interface {
	Get(ctx context.Context, tableName, rowID string) (*models.VersionRecord, error)
	Put(ctx context.Context, record *models.VersionRecord) error
}

// RowStore executes the actual mutation against a host table. Callers must
// have validated table and column identifiers already; values are always bound
// as parameters. The row primary key column is "id" by convention.
type RowStore interface {
	Upsert(ctx context.Context, tableName, rowID string, columns []string, values []any) error
	Update(ctx context.Context, tableName, rowID string, columns []string, values []any) error
	Delete(ctx context.Context, tableName, rowID string) error
}

// SyncStateRepository tracks per-peer sync outcomes.
type SyncStateRepository interface {
	Get(ctx context.Context, peerID string) (*models.SyncState, error)
	Put(ctx context.Context, state *models.SyncState) error
	List(ctx context.Context) ([]*models.SyncState, error)
}

// MembershipChecker answers whether a user belongs to a team.
type MembershipChecker interface {
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
}
