package utils

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sync"
)

// Signer signs a payload on behalf of a team.
type Signer interface {
	Sign(payload []byte, teamID string) ([]byte, error)
}

// Verifier checks a team signature over a payload.
type Verifier interface {
	Verify(payload, signature []byte, teamID string) bool
}

// KeyRing holds Ed25519 key material per team. Verification needs only the
// public key; signing additionally needs the private key, which is present
// only for teams this peer writes to.
type KeyRing struct {
	mu          sync.RWMutex
	publicKeys  map[string]ed25519.PublicKey
	privateKeys map[string]ed25519.PrivateKey
}

func NewKeyRing() *KeyRing {
	return &KeyRing{
		publicKeys:  make(map[string]ed25519.PublicKey),
		privateKeys: make(map[string]ed25519.PrivateKey),
	}
}

// LoadKeyRing builds a KeyRing from base64-encoded key maps, as loaded from
// config.
func LoadKeyRing(publicKeys, privateKeys map[string]string) (*KeyRing, error) {
	kr := NewKeyRing()
	for teamID, encoded := range publicKeys {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid public key for team %s: %w", teamID, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid public key size for team %s", teamID)
		}
		kr.publicKeys[teamID] = ed25519.PublicKey(raw)
	}
	for teamID, encoded := range privateKeys {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key for team %s: %w", teamID, err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid signing key size for team %s", teamID)
		}
		kr.privateKeys[teamID] = ed25519.PrivateKey(raw)
	}
	return kr, nil
}

// AddTeamKey registers a key pair for a team. privateKey may be nil for teams
// this peer only verifies.
func (kr *KeyRing) AddTeamKey(teamID string, publicKey ed25519.PublicKey, privateKey ed25519.PrivateKey) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	kr.publicKeys[teamID] = publicKey
	if privateKey != nil {
		kr.privateKeys[teamID] = privateKey
	}
}

func (kr *KeyRing) Sign(payload []byte, teamID string) ([]byte, error) {
	kr.mu.RLock()
	key, ok := kr.privateKeys[teamID]
	kr.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no signing key for team %s", teamID)
	}
	return ed25519.Sign(key, payload), nil
}

func (kr *KeyRing) Verify(payload, signature []byte, teamID string) bool {
	kr.mu.RLock()
	key, ok := kr.publicKeys[teamID]
	kr.mu.RUnlock()

	if !ok || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, payload, signature)
}
