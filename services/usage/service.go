package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"github.com/upb/bolt-saas/backend/services"
	"go.uber.org/zap"
)

// StatsWindow is the look-back for the recent request count
const StatsWindow = 30 * 24 * time.Hour

// ErrBufferFull is returned by Record when the queue is full and the log is dropped
var ErrBufferFull = errors.New("usage buffer full")

// ErrNotStarted is returned when recording before Start or after Stop
var ErrNotStarted = errors.New("usage service not started")

// Config holds configuration for the usage Service
type Config struct {
	BufferSize   int           // Size of the queued log channel
	WorkerCount  int           // Number of concurrent writers
	WriteTimeout time.Duration // Per-insert timeout for queued logs
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// Service records usage logs. Synchronous logging backs the usage endpoint;
// Record queues best-effort logs that must never fail the caller.
type Service struct {
	repo   repositories.UsageLogRepository
	logger *zap.Logger
	config Config
	now    func() time.Time

	queue chan *models.UsageLog
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewService creates a new usage Service
func NewService(repo repositories.UsageLogRepository, logger *zap.Logger, config Config) *Service {
	d := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = d.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = d.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = d.WriteTimeout
	}

	return &Service{
		repo:   repo,
		logger: logger,
		config: config,
		now:    time.Now,
		queue:  make(chan *models.UsageLog, config.BufferSize),
	}
}

// Start starts the background writers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("usage service already started")
	}
	if s.stopped {
		return fmt.Errorf("usage service already stopped")
	}

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started usage service",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.Int("buffer_size", s.config.BufferSize))

	return nil
}

// Stop closes the queue and waits for queued logs to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.stopped = true
	pending := len(s.queue)
	close(s.queue)
	s.mu.Unlock()

	s.logger.Info("stopping usage service", zap.Int("pending_logs", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("usage service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("usage service stop timeout after %v", timeout)
	}
}

// Record queues a log without blocking. A full queue drops the log.
func (s *Service) Record(log *models.UsageLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.queue <- log:
		return nil
	default:
		s.logger.Warn("usage queue full, dropping log",
			zap.String("action", string(log.ActionType)),
			zap.String("user_id", log.UserID))
		return ErrBufferFull
	}
}

// AIRequest describes a completed completion call
type AIRequest struct {
	UserID     string
	ProjectID  string
	Model      string
	Provider   string
	TokensUsed int
	Cost       float64
}

// RecordAIRequest queues an ai_request log
func (s *Service) RecordAIRequest(req AIRequest) error {
	log := models.NewUsageLog(req.UserID, models.UsageActionAIRequest).
		WithProject(req.ProjectID).
		WithModel(req.Model, req.Provider).
		WithUsage(req.TokensUsed, req.Cost)
	return s.Record(log)
}

// LogInput is a usage log submitted by a client
type LogInput struct {
	ProjectID  string
	ActionType string
	ModelUsed  string
	Provider   string
	TokensUsed int
	Cost       float64
	Metadata   json.RawMessage
}

// Log validates and writes a log synchronously, returning the stored row
func (s *Service) Log(ctx context.Context, userID string, in LogInput) (*models.UsageLog, error) {
	if in.ActionType == "" {
		return nil, services.ErrActionTypeRequired
	}
	action := models.UsageAction(in.ActionType)
	if !action.IsValid() {
		return nil, services.ErrInvalidActionType
	}

	log := models.NewUsageLog(userID, action).
		WithProject(in.ProjectID).
		WithModel(in.ModelUsed, in.Provider).
		WithUsage(in.TokensUsed, in.Cost)
	log.SetMetadata(in.Metadata)
	log.CreatedAt = s.now()

	if err := s.repo.Insert(ctx, log); err != nil {
		return nil, services.WrapInternal("Failed to log usage", err)
	}

	return log, nil
}

// GetStats aggregates a user's usage; the recent figure covers StatsWindow
func (s *Service) GetStats(ctx context.Context, userID string) (*repositories.UsageStats, error) {
	stats, err := s.repo.GetStats(ctx, userID, s.now().Add(-StatsWindow))
	if err != nil {
		return nil, services.WrapInternal("Failed to load usage stats", err)
	}
	return stats, nil
}

// List returns a page of a user's logs
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*models.UsageLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("Failed to list usage logs", err)
	}
	return logs, nil
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("usage worker started", zap.Int("worker_id", id))

	for log := range s.queue {
		if err := s.write(log); err != nil {
			s.logger.Error("failed to write usage log",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(log.ActionType)),
				zap.String("user_id", log.UserID))
		}
	}

	s.logger.Debug("usage worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(log *models.UsageLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// QueueStats describes the background queue
type QueueStats struct {
	BufferSize  int  `json:"bufferSize"`
	PendingLogs int  `json:"pendingLogs"`
	WorkerCount int  `json:"workerCount"`
	Started     bool `json:"started"`
}

// QueueStats returns the current queue figures
func (s *Service) QueueStats() QueueStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return QueueStats{
		BufferSize:  s.config.BufferSize,
		PendingLogs: len(s.queue),
		WorkerCount: s.config.WorkerCount,
		Started:     s.started,
	}
}
