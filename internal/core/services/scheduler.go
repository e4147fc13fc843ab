package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// Scheduler runs a sync cycle on a fixed interval.
// It is a pure core service with no external control API.
type Scheduler struct {
	interval time.Duration
	sync     driving.SyncService

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval disables it.
func NewScheduler(interval time.Duration, syncService driving.SyncService) *Scheduler {
	return &Scheduler{interval: interval, sync: syncService}
}

// Start runs the scheduler loop and blocks until Stop is called or ctx is
// done. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	return s.run(ctx, stopCh)
}

// Stop shuts down the scheduler and waits for an in-flight cycle.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	run, err := s.sync.Sync(ctx, driving.SyncRequest{})
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		logger.Debug("scheduler: sync already in progress, skipping tick")
	case err != nil:
		logger.Warn("scheduler: sync failed: %v", err)
	default:
		logger.Debug("scheduler: run %s finished (%s)", run.ID, run.Mode)
	}
}
