package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionScheduler prunes events older than MaxAge on a cron schedule.
type RetentionScheduler struct {
	backend  Backend
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRetentionScheduler creates a scheduler. An empty schedule or a
// non-positive maxAge disables pruning.
func NewRetentionScheduler(backend Backend, maxAge time.Duration, schedule string, logger *slog.Logger) *RetentionScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionScheduler{
		backend:  backend,
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "storage.retention"),
	}
}

// Start registers the pruning job and starts the cron runner. The runner
// stops when ctx is cancelled or Stop is called.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "*/15 * * * *" - Every 15 minutes
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.maxAge <= 0 {
		s.logger.Info("retention not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", s.schedule,
		"max_age", s.maxAge,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Prune deletes events older than maxAge relative to now.
func (s *RetentionScheduler) Prune(ctx context.Context, now time.Time) (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	return s.backend.Cleanup(ctx, now.Add(-s.maxAge))
}

func (s *RetentionScheduler) run(ctx context.Context) {
	deleted, err := s.Prune(ctx, time.Now())
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled pruning completed, no events deleted")
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning reports whether the cron runner is active.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, or nil when not running.
func (s *RetentionScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
