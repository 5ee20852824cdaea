package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prudhvinik1/peersync/internal/database"
	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/repositories"
	"github.com/prudhvinik1/peersync/internal/services"
	syncengine "github.com/prudhvinik1/peersync/internal/sync"
	"github.com/prudhvinik1/peersync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clusterSecret = "cluster-jwt-secret"

func TestRouter_Health(t *testing.T) {
	peer := newTestPeer(t, "peer-a")

	resp, err := http.Get(peer.serverURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ExchangeRequiresToken(t *testing.T) {
	peer := newTestPeer(t, "peer-a")

	body := bytes.NewBufferString(`{"operations":[]}`)
	resp, err := http.Post(peer.serverURL+"/v1/sync/exchange", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_TokenEndpoint(t *testing.T) {
	peer := newTestPeer(t, "peer-a")
	require.NoError(t, peer.auth.RegisterPeer("peer-b", "", "b-secret"))

	body := bytes.NewBufferString(`{"peer_id":"peer-b","secret":"b-secret"}`)
	resp, err := http.Post(peer.serverURL+"/v1/auth/token", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	peerID, err := peer.auth.ValidateToken(tr.Token)
	require.NoError(t, err)
	assert.Equal(t, "peer-b", peerID)

	// Wrong secret is refused
	body = bytes.NewBufferString(`{"peer_id":"peer-b","secret":"nope"}`)
	resp2, err := http.Post(peer.serverURL+"/v1/auth/token", "application/json", body)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

// Two full peers over real HTTP: A's tracked write lands in B's store during
// A's sync round, and B's write comes back to A in the same bidirectional
// exchange.
func TestRouter_TwoPeerConvergence(t *testing.T) {
	peerA := newTestPeer(t, "peer-a")
	peerB := newTestPeer(t, "peer-b")
	peerA.resolver.Register("peer-b", peerB.serverURL)
	peerB.resolver.Register("peer-a", peerA.serverURL)
	ctx := context.Background()

	_, err := peerA.engine.TrackOperation(ctx, "notes", models.OpInsert, "1",
		models.RowDataFrom("title", "from-a"), "")
	require.NoError(t, err)
	_, err = peerB.engine.TrackOperation(ctx, "notes", models.OpInsert, "2",
		models.RowDataFrom("title", "from-b"), "")
	require.NoError(t, err)

	state, err := peerA.engine.SyncWithPeer(ctx, "peer-b", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.OperationsSent)
	assert.Equal(t, int64(1), state.OperationsReceived)

	assert.Equal(t, "from-a", noteTitle(t, peerB.db, "1"))
	assert.Equal(t, "from-b", noteTitle(t, peerA.db, "2"))

	// B saw the round from its side too
	stateB, err := peerB.engine.GetSyncState(ctx, "peer-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stateB.OperationsSent)
	assert.Equal(t, int64(1), stateB.OperationsReceived)

	// A second round has nothing left to move
	state, err = peerA.engine.SyncWithPeer(ctx, "peer-b", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.OperationsSent, "cumulative counter unchanged")
}

func TestRouter_StatsEndpoint(t *testing.T) {
	peer := newTestPeer(t, "peer-a")

	token, err := peer.auth.IssueSelfToken("peer-x")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, peer.serverURL+"/v1/sync/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats syncengine.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "peer-a", stats.LocalPeerID)
	assert.Equal(t, int64(1), stats.LocalVersion)
}

func TestRouter_PeerStateNotFound(t *testing.T) {
	peer := newTestPeer(t, "peer-a")

	token, err := peer.auth.IssueSelfToken("peer-x")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, peer.serverURL+"/v1/sync/peers/peer-never", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Helper functions for test setup

type testPeer struct {
	db        *sql.DB
	engine    *syncengine.Engine
	auth      *services.PeerAuthService
	resolver  *syncengine.StaticPeerResolver
	serverURL string
}

func newTestPeer(t *testing.T, peerID string) *testPeer {
	ctx := context.Background()

	db, err := database.NewSQLiteDB(ctx, ":memory:")
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE notes (id TEXT PRIMARY KEY, title TEXT, body TEXT)`)
	require.NoError(t, err, "Failed to create notes table")

	auth := services.NewPeerAuthService(clusterSecret, time.Hour)
	resolver := syncengine.NewStaticPeerResolver(nil)
	exchange := syncengine.NewExchangeClient(resolver, 5*time.Second, func(ctx context.Context) (string, error) {
		return auth.IssueSelfToken(peerID)
	})

	ledger := repositories.NewSQLiteVersionLedger(db)
	engine, err := syncengine.NewEngine(ctx, syncengine.EngineOptions{
		LocalPeerID: peerID,
		Log:         repositories.NewSQLiteOperationLog(db),
		Ledger:      ledger,
		Rows:        repositories.NewSQLiteRowStore(db),
		States:      repositories.NewMemorySyncStateRepository(),
		Gate:        syncengine.NewSecurityGate(utils.NewKeyRing(), repositories.NewStaticMembership()),
		Resolver:    syncengine.NewResolver(ledger),
		Exchanger:   exchange,
		Signer:      utils.NewKeyRing(),
	})
	require.NoError(t, err, "Failed to build engine")

	ts := httptest.NewServer(NewRouter(engine, auth))
	t.Cleanup(ts.Close)

	return &testPeer{db: db, engine: engine, auth: auth, resolver: resolver, serverURL: ts.URL}
}

func noteTitle(t *testing.T, db *sql.DB, id string) string {
	var title string
	require.NoError(t, db.QueryRow(`SELECT title FROM notes WHERE id = ?`, id).Scan(&title))
	return title
}
