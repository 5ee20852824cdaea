package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/repositories"
)

// ConflictResolver decides whether an admitted operation should overwrite the
// locally recorded row state.
type ConflictResolver interface {
	ShouldApply(ctx context.Context, op *models.SyncOperation) (bool, error)
}

// Resolver implements last-write-wins over the version ledger. Only per-row
// recency is tracked, not cross-row causality.
type Resolver struct {
	ledger repositories.VersionLedgerRepository
}

func NewResolver(ledger repositories.VersionLedgerRepository) *Resolver {
	return &Resolver{ledger: ledger}
}

// ShouldApply consults the version ledger, never the row's live content.
// No prior writer -> apply. Strictly newer timestamp -> apply. Equal
// timestamps favor the already-applied writer, so resolution stays
// deterministic without a secondary comparator.
func (r *Resolver) ShouldApply(ctx context.Context, op *models.SyncOperation) (bool, error) {
	record, err := r.ledger.Get(ctx, op.TableName, op.RowID)
	if errors.Is(err, repositories.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up version record: %w", err)
	}
	return op.Timestamp.After(record.Timestamp), nil
}
