package models

import (
	"time"
)

// VersionRecord is the conflict-resolution ledger entry for one row: the most
// recently applied writer's (peer_id, version, timestamp). It is consulted
// instead of the row's live content when adjudicating incoming operations.
type VersionRecord struct {
	TableName string    `json:"table_name"`
	RowID     string    `json:"row_id"`
	PeerID    string    `json:"peer_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
