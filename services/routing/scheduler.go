package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Resetter clears provider health state
type Resetter interface {
	ResetAll(reason string)
}

// ResetScheduler periodically resets provider health on a cron schedule so
// providers benched by the error threshold get another chance.
type ResetScheduler struct {
	resetter Resetter
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewResetScheduler creates a scheduler. An empty schedule disables it.
func NewResetScheduler(resetter Resetter, schedule string, logger *zap.Logger) *ResetScheduler {
	return &ResetScheduler{
		resetter: resetter,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start validates the schedule and begins running resets.
//
// Common expressions:
//   - "*/15 * * * *" - every 15 minutes
//   - "0 * * * *"    - hourly
//   - "@every 10m"   - every 10 minutes from start
func (s *ResetScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("provider reset schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("reset scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.resetter.ResetAll("scheduled")
	}); err != nil {
		return fmt.Errorf("failed to schedule provider reset: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("provider reset scheduler started", zap.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running reset to finish
func (s *ResetScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("provider reset scheduler stopped")
}

// IsRunning returns true if the scheduler is running
func (s *ResetScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled reset, or nil when not running
func (s *ResetScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
