package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prudhvinik1/peersync/internal/models"
)

// ErrPeerUnresolvable means the peer has no known address this round. The
// coordinator records it and gives up without touching local data.
var ErrPeerUnresolvable = errors.New("peer unresolvable")

// ExchangeRequest is one side of the bidirectional exchange: the sender's
// pending operations, optionally scoped to a subset of tables.
type ExchangeRequest struct {
	Operations []*models.SyncOperation `json:"operations"`
	Tables     []string                `json:"tables,omitempty"`
}

// ExchangeResponse carries the receiver's own pending operations back to the
// sender in the same round trip.
type ExchangeResponse struct {
	Operations []*models.SyncOperation `json:"operations"`
}

// PeerResolver maps a peer identifier to a base URL. Discovery itself is out
// of scope; the default implementation is a static registry fed from config.
type PeerResolver interface {
	Resolve(peerID string) (string, bool)
}

type StaticPeerResolver struct {
	mu    sync.RWMutex
	peers map[string]string
}

func NewStaticPeerResolver(peers map[string]string) *StaticPeerResolver {
	if peers == nil {
		peers = make(map[string]string)
	}
	return &StaticPeerResolver{peers: peers}
}

func (r *StaticPeerResolver) Register(peerID, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[peerID] = address
}

func (r *StaticPeerResolver) Resolve(peerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.peers[peerID]
	return addr, ok
}

// Exchanger performs the single bidirectional exchange call with a peer.
type Exchanger interface {
	Exchange(ctx context.Context, peerID string, req *ExchangeRequest) (*ExchangeResponse, error)
}

// ExchangeClient posts pending operations to a resolved peer and returns the
// peer's batch. A non-2xx response is treated as "peer sent nothing this
// round", not as a failure; only transport errors abort the round.
type ExchangeClient struct {
	resolver PeerResolver
	client   *http.Client
	timeout  time.Duration
	token    func(ctx context.Context) (string, error) // optional bearer token
}

func NewExchangeClient(resolver PeerResolver, timeout time.Duration, token func(ctx context.Context) (string, error)) *ExchangeClient {
	return &ExchangeClient{
		resolver: resolver,
		client:   &http.Client{},
		timeout:  timeout,
		token:    token,
	}
}

func (c *ExchangeClient) Exchange(ctx context.Context, peerID string, req *ExchangeRequest) (*ExchangeResponse, error) {
	addr, ok := c.resolver.Resolve(peerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerUnresolvable, peerID)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal exchange request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/v1/sync/exchange", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build exchange request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain exchange token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("exchange call failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		log.Printf("peer %s returned status %d, treating as empty batch", peerID, httpResp.StatusCode)
		io.Copy(io.Discard, httpResp.Body)
		return &ExchangeResponse{}, nil
	}

	var resp ExchangeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		log.Printf("peer %s sent an undecodable batch, treating as empty: %v", peerID, err)
		return &ExchangeResponse{}, nil
	}
	return &resp, nil
}
