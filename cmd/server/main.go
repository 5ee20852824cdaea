package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/peersync/internal/config"
	"github.com/prudhvinik1/peersync/internal/database"
	"github.com/prudhvinik1/peersync/internal/repositories"
	"github.com/prudhvinik1/peersync/internal/server"
	"github.com/prudhvinik1/peersync/internal/services"
	syncengine "github.com/prudhvinik1/peersync/internal/sync"
	"github.com/prudhvinik1/peersync/internal/utils"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Storage backend: Postgres when DATABASE_URL is set, embedded SQLite
	// otherwise.
	var (
		oplog  repositories.OperationLogRepository
		ledger repositories.VersionLedgerRepository
		rows   repositories.RowStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create postgres pool: %v", err)
		}
		defer pool.Close()
		oplog = repositories.NewPostgresOperationLog(pool)
		ledger = repositories.NewPostgresVersionLedger(pool)
		rows = repositories.NewPostgresRowStore(pool)
	} else {
		db, err := database.NewSQLiteDB(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open sqlite database: %v", err)
		}
		defer db.Close()
		oplog = repositories.NewSQLiteOperationLog(db)
		ledger = repositories.NewSQLiteVersionLedger(db)
		rows = repositories.NewSQLiteRowStore(db)
	}

	var (
		states     repositories.SyncStateRepository = repositories.NewMemorySyncStateRepository()
		membership repositories.MembershipChecker   = repositories.NewStaticMembership()
	)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to create redis client: %v", err)
		}
		defer redisClient.Close()
		states = repositories.NewRedisSyncStateRepository(redisClient)
		membership = repositories.NewRedisMembership(redisClient)
	}

	keyRing, err := utils.LoadKeyRing(cfg.TeamKeys, cfg.TeamSigningKeys)
	if err != nil {
		log.Fatalf("Failed to load team keys: %v", err)
	}

	auth := services.NewPeerAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	for peerID, secret := range cfg.PeerSecrets {
		if err := auth.RegisterPeer(peerID, cfg.Peers[peerID], secret); err != nil {
			log.Fatalf("Failed to register peer %s: %v", peerID, err)
		}
	}

	resolver := syncengine.NewStaticPeerResolver(cfg.Peers)
	exchange := syncengine.NewExchangeClient(resolver, cfg.ExchangeTimeout, func(ctx context.Context) (string, error) {
		return auth.IssueSelfToken(cfg.PeerID)
	})

	engine, err := syncengine.NewEngine(ctx, syncengine.EngineOptions{
		LocalPeerID: cfg.PeerID,
		Log:         oplog,
		Ledger:      ledger,
		Rows:        rows,
		States:      states,
		Gate:        syncengine.NewSecurityGate(keyRing, membership),
		Resolver:    syncengine.NewResolver(ledger),
		Exchanger:   exchange,
		Signer:      keyRing,
	})
	if err != nil {
		log.Fatalf("Failed to build sync engine: %v", err)
	}

	schedulerCtx, cancelScheduler := context.WithCancel(ctx)
	defer cancelScheduler()

	var peerIDs []string
	for peerID := range cfg.Peers {
		peerIDs = append(peerIDs, peerID)
	}
	scheduler := syncengine.NewScheduler(engine, peerIDs, cfg.SyncInterval)
	scheduler.Start(schedulerCtx)
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: server.NewRouter(engine, auth),
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		cancelScheduler()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting peer %s on port %s", cfg.PeerID, cfg.ServerPort)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
