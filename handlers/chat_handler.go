package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/services"
	"github.com/upb/bolt-saas/backend/services/chat"
	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// ChatService defines chat history operations
type ChatService interface {
	Save(ctx context.Context, userID string, in chat.SaveInput) (*models.ChatHistory, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.ChatHistory, error)
	List(ctx context.Context, userID, projectID string) ([]*models.ChatHistory, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	ProjectStats(ctx context.Context, userID, projectID string) (*chat.Stats, error)
}

// SaveChatRequest is the body of POST /api/chat/save
type SaveChatRequest struct {
	ProjectID  string          `json:"projectId" validate:"max=255"`
	Messages   json.RawMessage `json:"messages"`
	ModelUsed  string          `json:"modelUsed" validate:"max=255"`
	Provider   string          `json:"provider" validate:"max=100"`
	TokensUsed int             `json:"tokensUsed" validate:"gte=0"`
	Cost       float64         `json:"cost" validate:"gte=0"`
	HistoryID  string          `json:"historyId"`
}

// ChatHandler handles chat history endpoints
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSave handles POST /api/chat/save
func (h *ChatHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body SaveChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var historyID uuid.UUID
	if body.HistoryID != "" {
		id, err := utils.ParseUUID(body.HistoryID, "historyId")
		if err != nil {
			// An id that cannot exist in the store matches no row.
			HandleServiceError(w, services.ErrChatHistoryNotFound, h.logger)
			return
		}
		historyID = id
	}

	history, err := h.service.Save(ctx, middleware.GetUserIDFromContext(ctx), chat.SaveInput{
		ProjectID:  body.ProjectID,
		Messages:   body.Messages,
		ModelUsed:  body.ModelUsed,
		Provider:   body.Provider,
		TokensUsed: body.TokensUsed,
		Cost:       body.Cost,
		HistoryID:  historyID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{"chatHistory": history})
}

// HandleList handles GET /api/chat/history?projectId=
func (h *ChatHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	histories, err := h.service.List(ctx, middleware.GetUserIDFromContext(ctx), r.URL.Query().Get("projectId"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{"histories": histories})
}

// HandleGet handles GET /api/chat/history/{id}
func (h *ChatHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.historyID(w, r)
	if !ok {
		return
	}

	history, err := h.service.Get(ctx, middleware.GetUserIDFromContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{"chatHistory": history})
}

// HandleDelete handles DELETE /api/chat/history/{id}
func (h *ChatHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.historyID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, middleware.GetUserIDFromContext(ctx), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, nil)
}

// HandleStats handles GET /api/chat/stats?projectId=
func (h *ChatHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.ProjectStats(ctx, middleware.GetUserIDFromContext(ctx), r.URL.Query().Get("projectId"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{"stats": stats})
}

func (h *ChatHandler) historyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid chat history ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
