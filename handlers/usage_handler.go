package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"github.com/upb/bolt-saas/backend/services/usage"
	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// UsageService defines usage logging operations
type UsageService interface {
	Log(ctx context.Context, userID string, in usage.LogInput) (*models.UsageLog, error)
	GetStats(ctx context.Context, userID string) (*repositories.UsageStats, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.UsageLog, error)
}

// LogUsageRequest is the body of POST /api/usage/log
type LogUsageRequest struct {
	ProjectID  string          `json:"projectId" validate:"max=255"`
	ActionType string          `json:"actionType"`
	ModelUsed  string          `json:"modelUsed" validate:"max=255"`
	Provider   string          `json:"provider" validate:"max=100"`
	TokensUsed int             `json:"tokensUsed" validate:"gte=0"`
	Cost       float64         `json:"cost" validate:"gte=0"`
	Metadata   json.RawMessage `json:"metadata"`
}

// UsageHandler handles usage log endpoints
type UsageHandler struct {
	service UsageService
	logger  *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(service UsageService, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		service: service,
		logger:  logger,
	}
}

// HandleLog handles POST /api/usage/log
func (h *UsageHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body LogUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	log, err := h.service.Log(ctx, middleware.GetUserIDFromContext(ctx), usage.LogInput{
		ProjectID:  body.ProjectID,
		ActionType: body.ActionType,
		ModelUsed:  body.ModelUsed,
		Provider:   body.Provider,
		TokensUsed: body.TokensUsed,
		Cost:       body.Cost,
		Metadata:   body.Metadata,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{"log": log})
}

// HandleStats handles GET /api/usage/stats
func (h *UsageHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.GetStats(ctx, middleware.GetUserIDFromContext(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{"stats": stats})
}

// HandleList handles GET /api/usage?limit=&offset=
func (h *UsageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	logs, err := h.service.List(ctx, middleware.GetUserIDFromContext(ctx), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if logs == nil {
		logs = []*models.UsageLog{}
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{"logs": logs})
}
