package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	PeerID          string
	ServerPort      string
	SQLitePath      string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	JWTExpiry       time.Duration
	ExchangeTimeout time.Duration
	SyncInterval    time.Duration
	Peers           map[string]string // peer_id -> base URL
	PeerSecrets     map[string]string // peer_id -> shared secret
	TeamKeys        map[string]string // team_id -> base64 public key
	TeamSigningKeys map[string]string // team_id -> base64 private key
}

func LoadConfig() (*Config, error) {
	expiry, err := time.ParseDuration(getEnv("JWT_EXPIRY", "24h"))
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}
	exchangeTimeout, err := time.ParseDuration(getEnv("EXCHANGE_TIMEOUT", "30s"))
	if err != nil {
		return nil, errors.New("invalid EXCHANGE_TIMEOUT format")
	}
	syncInterval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "5m"))
	if err != nil {
		return nil, errors.New("invalid SYNC_INTERVAL format")
	}

	peers, err := parsePeers(os.Getenv("PEERS"))
	if err != nil {
		return nil, err
	}
	peerSecrets, err := parseKeyMap("PEER_SECRETS")
	if err != nil {
		return nil, err
	}
	teamKeys, err := parseKeyMap("TEAM_KEYS")
	if err != nil {
		return nil, err
	}
	signingKeys, err := parseKeyMap("TEAM_SIGNING_KEYS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PeerID:          os.Getenv("PEER_ID"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		SQLitePath:      getEnv("SQLITE_PATH", "peersync.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTExpiry:       expiry,
		ExchangeTimeout: exchangeTimeout,
		SyncInterval:    syncInterval,
		Peers:           peers,
		PeerSecrets:     peerSecrets,
		TeamKeys:        teamKeys,
		TeamSigningKeys: signingKeys,
	}

	// Validate required fields
	if cfg.PeerID == "" {
		return nil, errors.New("PEER_ID is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// parsePeers parses "peer-a=http://host-a:8080,peer-b=http://host-b:8080".
func parsePeers(raw string) (map[string]string, error) {
	peers := make(map[string]string)
	if raw == "" {
		return peers, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		id, addr, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid PEERS entry %q", entry)
		}
		peers[id] = addr
	}
	return peers, nil
}

// parseKeyMap parses a JSON object of team_id -> base64 key from env.
func parseKeyMap(envKey string) (map[string]string, error) {
	raw := os.Getenv(envKey)
	keys := make(map[string]string)
	if raw == "" {
		return keys, nil
	}
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", envKey, err)
	}
	return keys, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
