package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/repositories"
	"github.com/prudhvinik1/peersync/internal/utils"
)

var (
	ErrTableNotAllowed = errors.New("table is not syncable")
	ErrUnknownOpType   = errors.New("unknown operation type")
)

type EngineOptions struct {
	LocalPeerID string
	LocalUserID string // optional; enables team membership checks on incoming operations
	Log         repositories.OperationLogRepository
	Ledger      repositories.VersionLedgerRepository
	Rows        repositories.RowStore
	States      repositories.SyncStateRepository
	Gate        *SecurityGate
	Resolver    ConflictResolver
	Exchanger   Exchanger
	Signer      utils.Signer
}

// Engine is the sync coordinator: it owns the pending set and the local
// version counter, runs the gate -> resolver -> applier pipeline over remote
// batches, and tracks per-peer sync state. One engine per process, constructed
// at startup and passed explicitly to call sites.
type Engine struct {
	localPeerID string
	localUserID string

	oplog    repositories.OperationLogRepository
	states   repositories.SyncStateRepository
	gate     *SecurityGate
	resolver ConflictResolver
	applier  *Applier
	exchange Exchanger
	signer   utils.Signer
	ledger   repositories.VersionLedgerRepository

	// mu serializes version allocation, the pending set, and every ledger
	// check-and-apply so two concurrent rounds cannot both win against a
	// stale read of the same VersionRecord.
	mu          stdsync.Mutex
	nextVersion int64
	pending     map[string]*models.SyncOperation

	roundsMu stdsync.Mutex
	rounds   map[string]*stdsync.Mutex
}

// NewEngine builds the engine and recovers durable state: the monotonic
// counter becomes max(local version)+1 and all not-yet-synced local
// operations re-enter the pending set, so sync survives restarts.
func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	if opts.LocalPeerID == "" {
		return nil, errors.New("local peer id is required")
	}

	e := &Engine{
		localPeerID: opts.LocalPeerID,
		localUserID: opts.LocalUserID,
		oplog:       opts.Log,
		states:      opts.States,
		gate:        opts.Gate,
		resolver:    opts.Resolver,
		applier:     NewApplier(opts.Rows, opts.Ledger),
		exchange:    opts.Exchanger,
		signer:      opts.Signer,
		ledger:      opts.Ledger,
		pending:     make(map[string]*models.SyncOperation),
		rounds:      make(map[string]*stdsync.Mutex),
	}

	maxVersion, err := e.oplog.MaxLocalVersion(ctx, e.localPeerID)
	if err != nil {
		return nil, fmt.Errorf("failed to recover version counter: %w", err)
	}
	e.nextVersion = maxVersion + 1

	pending, err := e.oplog.LoadPending(ctx, e.localPeerID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload pending operations: %w", err)
	}
	for _, op := range pending {
		e.pending[op.OpID] = op
	}
	return e, nil
}

// TrackOperation captures a local mutation as a replicable unit. After it
// returns, the operation is durable and will be offered to every peer until
// acknowledged. The version ledger is updated so that stale remote writes to
// the same row lose against this one.
func (e *Engine) TrackOperation(ctx context.Context, tableName string, operation models.OpType, rowID string, data *models.RowData, teamID string) (*models.SyncOperation, error) {
	if !IsSyncable(tableName) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotAllowed, tableName)
	}
	switch operation {
	case models.OpInsert, models.OpUpdate, models.OpDelete:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOpType, operation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	op := &models.SyncOperation{
		OpID:      uuid.New().String(),
		TableName: tableName,
		Operation: operation,
		RowID:     rowID,
		Data:      data,
		Timestamp: time.Now().UTC(),
		PeerID:    e.localPeerID,
		Version:   e.nextVersion,
		TeamID:    teamID,
	}

	if teamID != "" {
		payload, err := op.SignaturePayload()
		if err != nil {
			return nil, fmt.Errorf("failed to build signature payload: %w", err)
		}
		sig, err := e.signer.Sign(payload, teamID)
		if err != nil {
			return nil, fmt.Errorf("failed to sign operation: %w", err)
		}
		op.Signature = sig
	}

	// Durable before acknowledged: nothing is handed back to the caller
	// that could be lost on crash.
	if err := e.oplog.Append(ctx, op, false); err != nil {
		return nil, err
	}
	e.nextVersion++
	e.pending[op.OpID] = op

	if err := e.ledger.Put(ctx, &models.VersionRecord{
		TableName: tableName,
		RowID:     rowID,
		PeerID:    e.localPeerID,
		Version:   op.Version,
		Timestamp: op.Timestamp,
	}); err != nil {
		return nil, fmt.Errorf("failed to record local version: %w", err)
	}
	return op, nil
}

// SyncWithPeer runs one sync round: gather pending operations, exchange them
// with the peer in a single bidirectional call, apply the peer's batch through
// gate -> resolver -> applier, mark the sent operations synced, and update
// SyncState. Rounds with distinct peers run concurrently; rounds with the
// same peer are serialized.
func (e *Engine) SyncWithPeer(ctx context.Context, peerID string, tables []string) (*models.SyncState, error) {
	round := e.roundLock(peerID)
	round.Lock()
	defer round.Unlock()

	state := e.loadOrCreateState(ctx, peerID)
	state.Status = models.SyncStatusSyncing
	if err := e.states.Put(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist sync state: %w", err)
	}

	sent := e.gatherPending(tables)

	resp, err := e.exchange.Exchange(ctx, peerID, &ExchangeRequest{Operations: sent, Tables: tables})
	if err != nil {
		state.Status = models.SyncStatusError
		state.LastError = err.Error()
		if putErr := e.states.Put(ctx, state); putErr != nil {
			log.Printf("failed to persist error state for peer %s: %v", peerID, putErr)
		}
		return nil, fmt.Errorf("sync with peer %s failed: %w", peerID, err)
	}

	_, conflicts := e.applyRemoteBatch(ctx, resp.Operations, e.localUserID)

	if err := e.ackSent(ctx, sent); err != nil {
		state.Status = models.SyncStatusError
		state.LastError = err.Error()
		if putErr := e.states.Put(ctx, state); putErr != nil {
			log.Printf("failed to persist error state for peer %s: %v", peerID, putErr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	state.LastSync = &now
	state.OperationsSent += int64(len(sent))
	state.OperationsReceived += int64(len(resp.Operations))
	state.ConflictsResolved += int64(conflicts)
	state.Status = models.SyncStatusIdle
	state.LastError = ""
	if err := e.states.Put(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist sync state: %w", err)
	}
	return state.Clone(), nil
}

// HandleExchange is the responding half of the wire contract: apply the
// caller's batch, hand back our own pending operations, and account for both
// in the caller's SyncState entry.
func (e *Engine) HandleExchange(ctx context.Context, fromPeerID string, req *ExchangeRequest) (*ExchangeResponse, error) {
	_, conflicts := e.applyRemoteBatch(ctx, req.Operations, e.localUserID)

	out := e.gatherPending(req.Tables)
	if err := e.ackSent(ctx, out); err != nil {
		return nil, err
	}

	state := e.loadOrCreateState(ctx, fromPeerID)
	now := time.Now().UTC()
	state.LastSync = &now
	state.OperationsSent += int64(len(out))
	state.OperationsReceived += int64(len(req.Operations))
	state.ConflictsResolved += int64(conflicts)
	state.Status = models.SyncStatusIdle
	if err := e.states.Put(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist sync state: %w", err)
	}

	return &ExchangeResponse{Operations: out}, nil
}

// applyRemoteBatch runs each operation through the pipeline independently:
// one bad operation never aborts the batch. Security rejections are logged
// but not counted as conflicts; only resolver rejections are.
func (e *Engine) applyRemoteBatch(ctx context.Context, ops []*models.SyncOperation, actingUserID string) (applied, conflicts int) {
	for _, op := range ops {
		if op.PeerID == e.localPeerID {
			continue // our own operation echoed back
		}

		exists, err := e.oplog.Exists(ctx, op.OpID)
		if err != nil {
			log.Printf("failed to check operation %s: %v", op.OpID, err)
			continue
		}
		if exists {
			continue // idempotent replay
		}

		if err := e.gate.Admit(ctx, op, actingUserID); err != nil {
			log.Printf("rejected operation %s from peer %s: %v", op.OpID, op.PeerID, err)
			continue
		}

		e.mu.Lock()
		ok, err := e.resolver.ShouldApply(ctx, op)
		if err != nil {
			e.mu.Unlock()
			log.Printf("failed to resolve operation %s: %v", op.OpID, err)
			continue
		}
		if !ok {
			e.mu.Unlock()
			conflicts++
			continue // stale write discarded, counted as a resolved conflict
		}
		err = e.applier.Apply(ctx, op)
		e.mu.Unlock()
		if err != nil {
			log.Printf("failed to apply operation %s: %v", op.OpID, err)
			continue
		}

		// Applied remote operations enter the log as already-synced so the
		// log stays a full replay/audit history and de-duplicates replays.
		if err := e.oplog.Append(ctx, op, true); err != nil {
			log.Printf("failed to record applied operation %s: %v", op.OpID, err)
		}
		applied++
	}
	return applied, conflicts
}

// gatherPending snapshots the pending set, optionally filtered to a table
// subset, ordered by local version.
func (e *Engine) gatherPending(tables []string) []*models.SyncOperation {
	var filter map[string]bool
	if len(tables) > 0 {
		filter = make(map[string]bool, len(tables))
		for _, t := range tables {
			filter[t] = true
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.SyncOperation, 0, len(e.pending))
	for _, op := range e.pending {
		if filter != nil && !filter[op.TableName] {
			continue
		}
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// ackSent marks exchanged operations synced and drops them from the pending
// set. They are never physically deleted from the log.
func (e *Engine) ackSent(ctx context.Context, sent []*models.SyncOperation) error {
	if len(sent) == 0 {
		return nil
	}
	ids := make([]string, len(sent))
	for i, op := range sent {
		ids[i] = op.OpID
	}
	if err := e.oplog.MarkSynced(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark operations synced: %w", err)
	}

	e.mu.Lock()
	for _, id := range ids {
		delete(e.pending, id)
	}
	e.mu.Unlock()
	return nil
}

type Stats struct {
	LocalPeerID            string `json:"local_peer_id"`
	LocalVersion           int64  `json:"local_version"`
	PendingOperationsCount int    `json:"pending_operations_count"`
	SyncedPeersCount       int    `json:"synced_peers_count"`
}

func (e *Engine) GetStats(ctx context.Context) (*Stats, error) {
	states, err := e.states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync states: %w", err)
	}
	synced := 0
	for _, s := range states {
		if s.LastSync != nil {
			synced++
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return &Stats{
		LocalPeerID:            e.localPeerID,
		LocalVersion:           e.nextVersion,
		PendingOperationsCount: len(e.pending),
		SyncedPeersCount:       synced,
	}, nil
}

// GetSyncState returns the last completed or failed attempt for a peer, or
// repositories.ErrNotFound if the peer has never been contacted.
func (e *Engine) GetSyncState(ctx context.Context, peerID string) (*models.SyncState, error) {
	return e.states.Get(ctx, peerID)
}

func (e *Engine) GetAllSyncStates(ctx context.Context) ([]*models.SyncState, error) {
	return e.states.List(ctx)
}

func (e *Engine) LocalPeerID() string {
	return e.localPeerID
}

func (e *Engine) loadOrCreateState(ctx context.Context, peerID string) *models.SyncState {
	state, err := e.states.Get(ctx, peerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.SyncState{PeerID: peerID, Status: models.SyncStatusIdle}
	}
	if err != nil {
		log.Printf("failed to load sync state for peer %s: %v", peerID, err)
		return &models.SyncState{PeerID: peerID, Status: models.SyncStatusIdle}
	}
	return state
}

func (e *Engine) roundLock(peerID string) *stdsync.Mutex {
	e.roundsMu.Lock()
	defer e.roundsMu.Unlock()

	m, ok := e.rounds[peerID]
	if !ok {
		m = &stdsync.Mutex{}
		e.rounds[peerID] = m
	}
	return m
}
