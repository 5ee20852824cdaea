package models

import (
	"time"
)

type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
)

// SyncState tracks the outcome of sync rounds with one remote peer. Created
// lazily on first contact, never removed automatically.
type SyncState struct {
	PeerID             string     `json:"peer_id"`
	LastSync           *time.Time `json:"last_sync,omitempty"`
	OperationsSent     int64      `json:"operations_sent"`
	OperationsReceived int64      `json:"operations_received"`
	ConflictsResolved  int64      `json:"conflicts_resolved"`
	Status             SyncStatus `json:"status"`
	LastError          string     `json:"last_error,omitempty"`
}

func (s *SyncState) Clone() *SyncState {
	out := *s
	if s.LastSync != nil {
		t := *s.LastSync
		out.LastSync = &t
	}
	return &out
}
