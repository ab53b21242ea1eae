// Package sweeper runs the recurring purge of logically-expired entries.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/akulikov/stashkeeper/internal/logging"
)

// store is the slice of the storage engine the sweeper needs.
type store interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper deletes rows older than the TTL: once at start, then on every
// interval tick. A tick that fires while a previous run is still executing
// is skipped, so runs never overlap.
type Sweeper struct {
	store    store
	ttl      time.Duration
	interval time.Duration
	logger   logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

func New(store store, ttl, interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With("module", "sweeper"),
		now:      time.Now,
	}
}

// Run blocks until the context is cancelled, sweeping at start and on every
// tick. Sweep failures are logged and retried on the next tick; they never
// stop the loop.
func (s *Sweeper) Run(ctx context.Context) {

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping sweeper...")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single purge pass. Returns immediately if another pass is
// in flight.
func (s *Sweeper) Sweep(ctx context.Context) {

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn(ctx, "Previous sweep still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	cutoff := s.now().Add(-s.ttl)

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error(ctx, "Sweep failed", "error", err.Error())
		return
	}

	s.logger.Info(ctx, "Sweep finished", "deleted", deleted)
}
