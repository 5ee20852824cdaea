package sync

import (
	"context"
	"fmt"
	"regexp"

	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/repositories"
)

// identifierPattern matches real schema identifiers. Anything else in an
// operation's column names aborts that single operation before any SQL text is
// assembled; values are always bound as parameters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Applier translates an admitted, winning operation into a row mutation and
// records the new ledger entry.
type Applier struct {
	rows   repositories.RowStore
	ledger repositories.VersionLedgerRepository
}

func NewApplier(rows repositories.RowStore, ledger repositories.VersionLedgerRepository) *Applier {
	return &Applier{rows: rows, ledger: ledger}
}

func (a *Applier) Apply(ctx context.Context, op *models.SyncOperation) error {
	if !identifierPattern.MatchString(op.TableName) {
		return fmt.Errorf("invalid table identifier %q", op.TableName)
	}

	columns, values, err := extractColumns(op.Data)
	if err != nil {
		return err
	}

	switch op.Operation {
	case models.OpInsert:
		err = a.rows.Upsert(ctx, op.TableName, op.RowID, columns, values)
	case models.OpUpdate:
		if len(columns) == 0 {
			// Nothing to set; treat like an update to a deleted row.
			err = nil
		} else {
			err = a.rows.Update(ctx, op.TableName, op.RowID, columns, values)
		}
	case models.OpDelete:
		err = a.rows.Delete(ctx, op.TableName, op.RowID)
	default:
		return fmt.Errorf("unknown operation type %q", op.Operation)
	}
	if err != nil {
		return err
	}

	return a.ledger.Put(ctx, &models.VersionRecord{
		TableName: op.TableName,
		RowID:     op.RowID,
		PeerID:    op.PeerID,
		Version:   op.Version,
		Timestamp: op.Timestamp,
	})
}

// extractColumns validates every column name and returns names and values in
// the operation's insertion order. The "id" column is owned by row_id and
// skipped if a peer echoes it back in data.
func extractColumns(data *models.RowData) ([]string, []any, error) {
	if data.Len() == 0 {
		return nil, nil, nil
	}

	var columns []string
	var values []any
	for _, key := range data.Keys() {
		if !identifierPattern.MatchString(key) {
			return nil, nil, fmt.Errorf("invalid column identifier %q", key)
		}
		if key == "id" {
			continue
		}
		value, _ := data.Get(key)
		columns = append(columns, key)
		values = append(values, value)
	}
	return columns, values, nil
}
