package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid peer credentials")
	ErrUnknownPeer        = errors.New("unknown peer")
	ErrInvalidToken       = errors.New("invalid token")
)

// PeerAuthService authenticates remote peers on the exchange endpoint. Peers
// present a shared secret once to obtain an HS256 token; the secret is stored
// bcrypt-hashed. All peers in a mesh share the same JWT secret, so a token a
// peer issues for itself is honored by every other peer.
type PeerAuthService struct {
	mu        sync.RWMutex
	peers     map[string]*models.Peer
	jwtSecret string
	jwtExpiry time.Duration
}

func NewPeerAuthService(jwtSecret string, jwtExpiry time.Duration) *PeerAuthService {
	return &PeerAuthService{
		peers:     make(map[string]*models.Peer),
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

func (s *PeerAuthService) RegisterPeer(peerID, address, secret string) error {
	hash, err := utils.HashSecret(secret)
	if err != nil {
		return fmt.Errorf("failed to register peer: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[peerID] = &models.Peer{ID: peerID, Address: address, SecretHash: hash}
	return nil
}

// IssueToken validates a peer's shared secret and returns a bearer token.
func (s *PeerAuthService) IssueToken(peerID, secret string) (string, time.Time, error) {
	s.mu.RLock()
	peer, ok := s.peers[peerID]
	s.mu.RUnlock()

	if !ok {
		return "", time.Time{}, ErrUnknownPeer
	}
	if !utils.CheckSecret(peer.SecretHash, secret) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.signToken(peerID)
}

// IssueSelfToken signs a token for the local peer without a secret check,
// used by the exchange client when calling out to other peers.
func (s *PeerAuthService) IssueSelfToken(peerID string) (string, error) {
	token, _, err := s.signToken(peerID)
	return token, err
}

// ValidateToken returns the peer id a token was issued to.
func (s *PeerAuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *PeerAuthService) signToken(peerID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.jwtExpiry)
	claims := jwt.RegisteredClaims{
		Subject:   peerID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
