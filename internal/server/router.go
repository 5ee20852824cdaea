package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/peersync/internal/repositories"
	"github.com/prudhvinik1/peersync/internal/services"
	syncengine "github.com/prudhvinik1/peersync/internal/sync"
)

type contextKey string

const peerIDKey contextKey = "peer_id"

// NewRouter wires the peer-facing HTTP surface: the bidirectional exchange
// endpoint plus health and read-only state endpoints.
func NewRouter(engine *syncengine.Engine, auth *services.PeerAuthService) chi.Router {
	h := &handler{engine: engine, auth: auth}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Post("/v1/auth/token", h.issueToken)

	router.Group(func(r chi.Router) {
		r.Use(h.requirePeerToken)
		r.Post("/v1/sync/exchange", h.exchange)
		r.Get("/v1/sync/stats", h.stats)
		r.Get("/v1/sync/peers", h.peers)
		r.Get("/v1/sync/peers/{peerID}", h.peerState)
	})

	return router
}

type handler struct {
	engine *syncengine.Engine
	auth   *services.PeerAuthService
}

type tokenRequest struct {
	PeerID string `json:"peer_id"`
	Secret string `json:"secret"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, _, err := h.auth.IssueToken(req.PeerID, req.Secret)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// requirePeerToken authenticates the calling peer and stashes its id in the
// request context.
func (h *handler) requirePeerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		peerID, err := h.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerIDKey, peerID)))
	})
}

func (h *handler) exchange(w http.ResponseWriter, r *http.Request) {
	peerID, _ := r.Context().Value(peerIDKey).(string)

	var req syncengine.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.engine.HandleExchange(r.Context(), peerID, &req)
	if err != nil {
		log.Printf("exchange with peer %s failed: %v", peerID, err)
		http.Error(w, "exchange failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GetStats(r.Context())
	if err != nil {
		http.Error(w, "failed to gather stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) peers(w http.ResponseWriter, r *http.Request) {
	states, err := h.engine.GetAllSyncStates(r.Context())
	if err != nil {
		http.Error(w, "failed to list sync states", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (h *handler) peerState(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.GetSyncState(r.Context(), chi.URLParam(r, "peerID"))
	if errors.Is(err, repositories.ErrNotFound) {
		http.Error(w, "peer never synced", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load sync state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
