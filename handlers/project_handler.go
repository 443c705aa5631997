package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/services/project"
	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// ProjectService defines project persistence operations
type ProjectService interface {
	Save(ctx context.Context, userID string, in project.SaveInput) (*models.Project, error)
	Load(ctx context.Context, userID, projectID string) (*project.Loaded, error)
}

// SaveProjectRequest is the body of POST /api/projects/save. Files stays raw
// because only an object value replaces the stored file set.
type SaveProjectRequest struct {
	ProjectID   string          `json:"projectId" validate:"max=255"`
	Name        string          `json:"name" validate:"max=255"`
	Description *string         `json:"description"`
	Framework   *string         `json:"framework" validate:"omitempty,max=100"`
	Files       json.RawMessage `json:"files"`
}

// ProjectHandler handles project save and load
type ProjectHandler struct {
	service ProjectService
	logger  *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(service ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSave handles POST /api/projects/save
func (h *ProjectHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body SaveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	files, err := decodeFileMap(body.Files)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid files format", nil)
		return
	}

	saved, err := h.service.Save(ctx, middleware.GetUserIDFromContext(ctx), project.SaveInput{
		ProjectID:   body.ProjectID,
		Name:        body.Name,
		Description: body.Description,
		Framework:   body.Framework,
		Files:       files,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("project saved",
		zap.String("request_id", requestID),
		zap.String("project_id", saved.ID),
		zap.Int("files", len(files)))

	_ = utils.WriteSuccess(w, map[string]interface{}{"project": saved})
}

// HandleLoad handles GET /api/projects/load?projectId=
func (h *ProjectHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	loaded, err := h.service.Load(ctx, middleware.GetUserIDFromContext(ctx), r.URL.Query().Get("projectId"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{
		"project": loaded.Project,
		"files":   loaded.Files,
	})
}

// decodeFileMap returns nil for an absent or non-object value
func decodeFileMap(raw json.RawMessage) (project.FileMap, error) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	files := project.FileMap{}
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, err
	}
	return files, nil
}
