package models

import (
	"time"
)

// Peer is a remote instance of the application: its identifier, where to reach
// it, and the bcrypt hash of the shared secret it authenticates with.
type Peer struct {
	ID         string     `json:"id"`
	Address    string     `json:"address"`
	SecretHash string     `json:"-"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}
