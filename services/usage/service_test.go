package usage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"github.com/upb/bolt-saas/backend/services"
	"go.uber.org/zap"
)

// MockUsageLogRepository is a mock implementation of UsageLogRepository
type MockUsageLogRepository struct {
	mock.Mock
	mu       sync.Mutex
	inserted []*models.UsageLog
}

func (m *MockUsageLogRepository) Insert(ctx context.Context, log *models.UsageLog) error {
	args := m.Called(ctx, log)
	m.mu.Lock()
	m.inserted = append(m.inserted, log)
	m.mu.Unlock()
	return args.Error(0)
}

func (m *MockUsageLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.UsageLog, error) {
	args := m.Called(ctx, userID, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.UsageLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsageLogRepository) GetStats(ctx context.Context, userID string, since time.Time) (*repositories.UsageStats, error) {
	args := m.Called(ctx, userID, since)
	if stats := args.Get(0); stats != nil {
		return stats.(*repositories.UsageStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsageLogRepository) WithTx(tx repositories.Transaction) repositories.UsageLogRepository {
	return m
}

func (m *MockUsageLogRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

func TestService_StartStop(t *testing.T) {
	repo := new(MockUsageLogRepository)
	svc := NewService(repo, zap.NewNop(), DefaultConfig())

	require.NoError(t, svc.Start())
	assert.True(t, svc.QueueStats().Started)
	assert.Error(t, svc.Start(), "double start")

	require.NoError(t, svc.Stop(time.Second))
	assert.False(t, svc.QueueStats().Started)
	assert.ErrorIs(t, svc.Stop(time.Second), ErrNotStarted)
	assert.Error(t, svc.Start(), "restart after stop")
}

func TestService_RecordBeforeStart(t *testing.T) {
	svc := NewService(new(MockUsageLogRepository), zap.NewNop(), DefaultConfig())
	assert.ErrorIs(t, svc.Record(models.NewUsageLog("u", models.UsageActionDeployment)), ErrNotStarted)
}

func TestService_RecordAIRequestIsWritten(t *testing.T) {
	repo := new(MockUsageLogRepository)
	repo.On("Insert", mock.Anything, mock.AnythingOfType("*models.UsageLog")).Return(nil)

	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, svc.Start())

	err := svc.RecordAIRequest(AIRequest{
		UserID:     "member-1",
		ProjectID:  "proj-1",
		Model:      "deepseek-coder",
		Provider:   "Deepseek",
		TokensUsed: 1000,
		Cost:       0.0001,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Stop(time.Second))

	require.Equal(t, 1, repo.count())
	log := repo.inserted[0]
	assert.Equal(t, models.UsageActionAIRequest, log.ActionType)
	assert.Equal(t, "member-1", log.UserID)
	require.NotNil(t, log.ProjectID)
	assert.Equal(t, "proj-1", *log.ProjectID)
	require.NotNil(t, log.Provider)
	assert.Equal(t, "Deepseek", *log.Provider)
	assert.Equal(t, 1000, log.TokensUsed)
}

func TestService_WriteFailureDoesNotStopWorkers(t *testing.T) {
	repo := new(MockUsageLogRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, svc.Start())

	require.NoError(t, svc.Record(models.NewUsageLog("u", models.UsageActionFileUpload)))
	require.NoError(t, svc.Record(models.NewUsageLog("u", models.UsageActionFileUpload)))
	require.NoError(t, svc.Stop(time.Second))

	assert.Equal(t, 2, repo.count())
}

func TestService_BufferFull(t *testing.T) {
	repo := new(MockUsageLogRepository)
	block := make(chan struct{})
	repo.On("Insert", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-block }).
		Return(nil)

	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})
	require.NoError(t, svc.Start())

	// first is taken by the worker, second fills the buffer
	require.NoError(t, svc.Record(models.NewUsageLog("u", models.UsageActionDeployment)))
	require.Eventually(t, func() bool { return svc.QueueStats().PendingLogs == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Record(models.NewUsageLog("u", models.UsageActionDeployment)))

	assert.ErrorIs(t, svc.Record(models.NewUsageLog("u", models.UsageActionDeployment)), ErrBufferFull)

	close(block)
	require.NoError(t, svc.Stop(time.Second))
}

func TestService_StopTimesOutOnStuckWrite(t *testing.T) {
	repo := new(MockUsageLogRepository)
	block := make(chan struct{})
	defer close(block)
	repo.On("Insert", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-block }).
		Return(nil)

	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})
	require.NoError(t, svc.Start())
	require.NoError(t, svc.Record(models.NewUsageLog("u", models.UsageActionDeployment)))

	err := svc.Stop(20 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop timeout")
}

func TestService_Log(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   LogInput
		wantErr error
	}{
		{
			name:    "missing action type",
			input:   LogInput{},
			wantErr: services.ErrActionTypeRequired,
		},
		{
			name:    "unknown action type",
			input:   LogInput{ActionType: "login"},
			wantErr: services.ErrInvalidActionType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUsageLogRepository)
			svc := NewService(repo, zap.NewNop(), DefaultConfig())

			_, err := svc.Log(ctx, "user-1", tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		})
	}

	t.Run("valid log is inserted", func(t *testing.T) {
		repo := new(MockUsageLogRepository)
		repo.On("Insert", ctx, mock.AnythingOfType("*models.UsageLog")).Return(nil)
		svc := NewService(repo, zap.NewNop(), DefaultConfig())

		log, err := svc.Log(ctx, "user-1", LogInput{
			ActionType: "project_create",
			ProjectID:  "proj-9",
			Metadata:   json.RawMessage(`{"template":"vite"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, models.UsageActionProjectCreate, log.ActionType)
		assert.JSONEq(t, `{"template":"vite"}`, string(log.Metadata))
		assert.Nil(t, log.ModelUsed)
		repo.AssertExpectations(t)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		repo := new(MockUsageLogRepository)
		repo.On("Insert", ctx, mock.Anything).Return(errors.New("boom"))
		svc := NewService(repo, zap.NewNop(), DefaultConfig())

		_, err := svc.Log(ctx, "user-1", LogInput{ActionType: "deployment"})
		assert.True(t, services.IsInternalError(err))
	})
}

func TestService_GetStatsUsesWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	want := &repositories.UsageStats{TotalRequests: 3}

	repo := new(MockUsageLogRepository)
	repo.On("GetStats", ctx, "user-1", now.Add(-StatsWindow)).Return(want, nil)

	svc := NewService(repo, zap.NewNop(), DefaultConfig())
	svc.now = func() time.Time { return now }

	stats, err := svc.GetStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, stats)
}

func TestService_ListClampsLimit(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUsageLogRepository)
	repo.On("ListByUser", ctx, "user-1", 50, 0).Return([]*models.UsageLog{}, nil)

	svc := NewService(repo, zap.NewNop(), DefaultConfig())
	_, err := svc.List(ctx, "user-1", 500, -3)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1000, cfg.BufferSize)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
}
