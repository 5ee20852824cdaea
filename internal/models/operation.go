package models

import (
	"time"
)

type OpType string

const (
	OpInsert OpType = "insert"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// SyncOperation is an immutable, replicable unit of change. op_id is globally
// unique and used for idempotent de-duplication; version is a monotonic counter
// local to the originating peer, not a global clock.
type SyncOperation struct {
	OpID      string    `json:"op_id"`
	TableName string    `json:"table_name"`
	Operation OpType    `json:"operation"`
	RowID     string    `json:"row_id"`
	Data      *RowData  `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	PeerID    string    `json:"peer_id"`
	Version   int64     `json:"version"`
	TeamID    string    `json:"team_id,omitempty"`
	Signature []byte    `json:"signature,omitempty"`
}

// SignaturePayload is the canonical byte encoding the team signature covers:
// the column data serialized in insertion order, or "null" for delete
// operations that carry no data.
func (op *SyncOperation) SignaturePayload() ([]byte, error) {
	if op.Data == nil {
		return []byte("null"), nil
	}
	return op.Data.MarshalJSON()
}
