package sync

import (
	"context"
	"log"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scheduler issues periodic sync rounds against a fixed set of peers. Rounds
// for different peers run concurrently; errors are logged and left to the next
// tick, retry policy stays with the caller configuring the interval.
type Scheduler struct {
	engine   *Engine
	peers    []string
	interval time.Duration

	mu        stdsync.Mutex
	isRunning bool
	stopCh    chan struct{}
	wg        stdsync.WaitGroup
}

func NewScheduler(engine *Engine, peers []string, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		peers:    peers,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.syncAll(ctx)
		}
	}
}

// SyncAll runs one round against every configured peer immediately.
func (s *Scheduler) SyncAll(ctx context.Context) {
	s.syncAll(ctx)
}

func (s *Scheduler) syncAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, peerID := range s.peers {
		peerID := peerID
		g.Go(func() error {
			if _, err := s.engine.SyncWithPeer(gctx, peerID, nil); err != nil {
				log.Printf("scheduled sync with peer %s failed: %v", peerID, err)
			}
			return nil
		})
	}
	g.Wait()
}
