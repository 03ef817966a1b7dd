package hardening

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/memoryd/internal/config"
)

// Scheduler runs a Purger against a single repoId on config.PurgeScheduleConfig's
// interval. At most one purge is in flight at a time (§5's "Shared resources").
type Scheduler struct {
	purger *Purger
	repoID string
	cfg    config.PurgeScheduleConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	lastMu     sync.Mutex
	lastResult Result
	lastErr    error
}

// NewScheduler constructs a Scheduler. It does not start automatically.
func NewScheduler(purger *Purger, repoID string, cfg config.PurgeScheduleConfig) *Scheduler {
	return &Scheduler{purger: purger, repoID: repoID, cfg: cfg}
}

// Start begins the background purge loop. Idempotent: calling Start on an
// already-running Scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.cfg.Enabled {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	go s.run(ctx, s.stopCh)
}

// Stop signals the background loop to exit. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

func (s *Scheduler) run(ctx context.Context, stopCh chan struct{}) {
	interval := time.Duration(s.cfg.IntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.purger.Purge(ctx, s.repoID)
	s.lastMu.Lock()
	s.lastResult, s.lastErr = result, err
	s.lastMu.Unlock()
}

// LastResult returns the most recent completed purge run, if any.
func (s *Scheduler) LastResult() (Result, error) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastResult, s.lastErr
}
