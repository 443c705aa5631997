package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"github.com/upb/bolt-saas/backend/services"
	"github.com/upb/bolt-saas/backend/services/usage"
	"go.uber.org/zap"
)

// MockUsageService is a mock implementation of UsageService
type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) Log(ctx context.Context, userID string, in usage.LogInput) (*models.UsageLog, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageLog), args.Error(1)
}

func (m *MockUsageService) GetStats(ctx context.Context, userID string) (*repositories.UsageStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.UsageStats), args.Error(1)
}

func (m *MockUsageService) List(ctx context.Context, userID string, limit, offset int) ([]*models.UsageLog, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UsageLog), args.Error(1)
}

func TestUsageHandler_HandleLog(t *testing.T) {
	logger := zap.NewNop()

	t.Run("logs action", func(t *testing.T) {
		svc := new(MockUsageService)
		handler := NewUsageHandler(svc, logger)

		log := models.NewUsageLog("user-1", models.UsageActionDeployment)
		svc.On("Log", mock.Anything, "user-1", mock.MatchedBy(func(in usage.LogInput) bool {
			return in.ActionType == "deployment" &&
				in.ProjectID == "proj-1" &&
				string(in.Metadata) == `{"target":"netlify"}`
		})).Return(log, nil)

		body := `{"projectId":"proj-1","actionType":"deployment","metadata":{"target":"netlify"}}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/usage/log", strings.NewReader(body)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleLog(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, true, response["success"])
		assert.Equal(t, "deployment", response["log"].(map[string]interface{})["action_type"])
		svc.AssertExpectations(t)
	})

	t.Run("unknown action returns 400", func(t *testing.T) {
		svc := new(MockUsageService)
		handler := NewUsageHandler(svc, logger)

		svc.On("Log", mock.Anything, "user-1", mock.Anything).Return(nil, services.ErrInvalidActionType)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/usage/log",
			strings.NewReader(`{"actionType":"teleport"}`)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleLog(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Invalid action type", response["error"])
	})

	t.Run("negative cost fails validation", func(t *testing.T) {
		svc := new(MockUsageService)
		handler := NewUsageHandler(svc, logger)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/usage/log",
			strings.NewReader(`{"actionType":"deployment","cost":-0.5}`)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleLog(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Log", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUsageHandler_HandleStats(t *testing.T) {
	svc := new(MockUsageService)
	handler := NewUsageHandler(svc, zap.NewNop())

	svc.On("GetStats", mock.Anything, "user-1").Return(&repositories.UsageStats{
		TotalRequests:  4,
		TotalTokens:    1200,
		TotalCost:      0.25,
		RecentRequests: 2,
	}, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/usage/stats", nil), "user-1")
	w := httptest.NewRecorder()

	handler.HandleStats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"success":true,"stats":{"totalRequests":4,"totalTokens":1200,"totalCost":0.25,"monthlyRequests":2}}`,
		w.Body.String())
}

func TestUsageHandler_HandleList(t *testing.T) {
	logger := zap.NewNop()

	t.Run("passes paging through", func(t *testing.T) {
		svc := new(MockUsageService)
		handler := NewUsageHandler(svc, logger)
		svc.On("List", mock.Anything, "user-1", 20, 40).Return([]*models.UsageLog{}, nil)

		req := withUser(httptest.NewRequest(http.MethodGet, "/api/usage?limit=20&offset=40", nil), "user-1")
		w := httptest.NewRecorder()
		handler.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unparseable paging falls back to zero and nil becomes empty", func(t *testing.T) {
		svc := new(MockUsageService)
		handler := NewUsageHandler(svc, logger)
		svc.On("List", mock.Anything, "user-1", 0, 0).Return(([]*models.UsageLog)(nil), nil)

		req := withUser(httptest.NewRequest(http.MethodGet, "/api/usage?limit=lots", nil), "user-1")
		w := httptest.NewRecorder()
		handler.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"logs":[]}`, w.Body.String())
	})
}
