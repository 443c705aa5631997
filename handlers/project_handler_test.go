package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/services"
	"github.com/upb/bolt-saas/backend/services/project"
	"go.uber.org/zap"
)

// MockProjectService is a mock implementation of ProjectService
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Save(ctx context.Context, userID string, in project.SaveInput) (*models.Project, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) Load(ctx context.Context, userID, projectID string) (*project.Loaded, error) {
	args := m.Called(ctx, userID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Loaded), args.Error(1)
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &middleware.Claims{Subject: userID}))
}

func TestProjectHandler_HandleSave(t *testing.T) {
	logger := zap.NewNop()

	t.Run("saves project with files", func(t *testing.T) {
		svc := new(MockProjectService)
		handler := NewProjectHandler(svc, logger)

		saved := models.NewProject("proj-1", "user-1", "My App")
		svc.On("Save", mock.Anything, "user-1", mock.MatchedBy(func(in project.SaveInput) bool {
			entry := in.Files["/src/index.ts"]
			return in.ProjectID == "proj-1" &&
				in.Name == "My App" &&
				in.Framework != nil && *in.Framework == "vite" &&
				len(in.Files) == 2 &&
				entry != nil && entry.Type == "file" && entry.Content == "export {}"
		})).Return(saved, nil)

		body := `{
			"projectId": "proj-1",
			"name": "My App",
			"framework": "vite",
			"files": {
				"/src/index.ts": {"type": "file", "content": "export {}", "isBinary": false},
				"/src": {"type": "folder"}
			}
		}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/projects/save", strings.NewReader(body)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleSave(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, true, response["success"])
		assert.Equal(t, "proj-1", response["project"].(map[string]interface{})["id"])
		svc.AssertExpectations(t)
	})

	t.Run("non object files leave stored files untouched", func(t *testing.T) {
		svc := new(MockProjectService)
		handler := NewProjectHandler(svc, logger)

		svc.On("Save", mock.Anything, "user-1", mock.MatchedBy(func(in project.SaveInput) bool {
			return in.Files == nil
		})).Return(models.NewProject("proj-1", "user-1", ""), nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/projects/save",
			strings.NewReader(`{"projectId":"proj-1","files":["a"]}`)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleSave(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing project id returns 400", func(t *testing.T) {
		svc := new(MockProjectService)
		handler := NewProjectHandler(svc, logger)

		svc.On("Save", mock.Anything, "user-1", mock.Anything).Return(nil, services.ErrProjectIDRequired)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/projects/save", strings.NewReader(`{"name":"x"}`)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleSave(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Project ID is required", response["error"])
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		svc := new(MockProjectService)
		handler := NewProjectHandler(svc, logger)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/projects/save", strings.NewReader(`{`)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleSave(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		svc := new(MockProjectService)
		handler := NewProjectHandler(svc, logger)

		svc.On("Save", mock.Anything, "user-1", mock.Anything).
			Return(nil, services.WrapInternal("Failed to save project", errors.New("pq: deadlock")))

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/projects/save", strings.NewReader(`{"projectId":"p"}`)), "user-1")
		w := httptest.NewRecorder()

		handler.HandleSave(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "deadlock")
	})
}

func TestProjectHandler_HandleLoad(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns project and file map", func(t *testing.T) {
		svc := new(MockProjectService)
		handler := NewProjectHandler(svc, logger)

		svc.On("Load", mock.Anything, "user-1", "proj-1").Return(&project.Loaded{
			Project: models.NewProject("proj-1", "user-1", "App"),
			Files: map[string]models.FileEntry{
				"/index.html": {Type: "file", Content: "<html></html>"},
			},
		}, nil)

		req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects/load?projectId=proj-1", nil), "user-1")
		w := httptest.NewRecorder()

		handler.HandleLoad(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, true, response["success"])
		files := response["files"].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"type": "file", "content": "<html></html>", "isBinary": false}, files["/index.html"])
	})

	t.Run("unknown project returns 404", func(t *testing.T) {
		svc := new(MockProjectService)
		handler := NewProjectHandler(svc, logger)

		svc.On("Load", mock.Anything, "user-1", "nope").Return(nil, services.ErrProjectNotFound)

		req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects/load?projectId=nope", nil), "user-1")
		w := httptest.NewRecorder()

		handler.HandleLoad(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Project not found", response["error"])
	})
}
