package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/services"
	"github.com/upb/bolt-saas/backend/services/completion"
	"github.com/upb/bolt-saas/backend/services/providers"
	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// CompletionService defines the operations behind /api/auto-llm
type CompletionService interface {
	Complete(ctx context.Context, caller completion.Caller, req *providers.Request) (*providers.Response, error)
	Status() map[string]providers.ProviderStatus
	Force(key string) error
	Reset(reason string) error
}

// CompletionRequest is the inbound body of POST /api/auto-llm. Messages is
// kept raw so a missing or non-array value can be told apart from an empty one.
type CompletionRequest struct {
	Messages    json.RawMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int            `json:"maxTokens,omitempty" validate:"omitempty,gte=0"`
	Stream      bool            `json:"stream,omitempty"`
	ProjectID   string          `json:"projectId,omitempty" validate:"max=255"`
}

// ForceProviderRequest is the body of POST /api/auto-llm/force
type ForceProviderRequest struct {
	Provider string `json:"provider"`
}

// CompletionErrorResponse is the failure body of POST /api/auto-llm
type CompletionErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CompletionHandler handles the auto-routing completion endpoints
type CompletionHandler struct {
	service CompletionService
	logger  *zap.Logger
}

// NewCompletionHandler creates a new CompletionHandler
func NewCompletionHandler(service CompletionService, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		service: service,
		logger:  logger,
	}
}

// HandleComplete handles POST /api/auto-llm
func (h *CompletionHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, services.ErrInvalidMessages.Message, nil)
		return
	}

	messages, ok := decodeMessages(body.Messages)
	if !ok {
		_ = utils.WriteBadRequest(w, services.ErrInvalidMessages.Message, nil)
		return
	}

	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	caller := completion.Caller{
		UserID:    middleware.GetUserIDFromContext(ctx),
		ProjectID: body.ProjectID,
	}
	resp, err := h.service.Complete(ctx, caller, &providers.Request{
		Messages:    messages,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
		Stream:      body.Stream,
	})
	if err != nil {
		h.writeCompletionError(w, requestID, err)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/auto-llm
func (h *CompletionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteJSON(w, http.StatusOK, h.service.Status()); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleForce handles POST /api/auto-llm/force
func (h *CompletionHandler) HandleForce(w http.ResponseWriter, r *http.Request) {
	var body ForceProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.Force(body.Provider); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("provider forced",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("provider", body.Provider))

	_ = utils.WriteSuccess(w, map[string]interface{}{
		"provider": body.Provider,
		"status":   h.service.Status(),
	})
}

// HandleReset handles POST /api/auto-llm/reset
func (h *CompletionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset("manual"); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteSuccess(w, map[string]interface{}{
		"status": h.service.Status(),
	})
}

// writeCompletionError writes 400 for bad input, 503 when no provider has a
// credential and 500 with the router's message for every other failure.
func (h *CompletionHandler) writeCompletionError(w http.ResponseWriter, requestID string, err error) {
	h.logger.Error("auto llm request failed",
		zap.String("request_id", requestID),
		zap.Error(err))

	switch {
	case services.IsValidationError(err):
		_ = utils.WriteBadRequest(w, services.GetErrorMessage(err), nil)
	case services.IsUnavailableError(err):
		_ = utils.WriteJSON(w, http.StatusServiceUnavailable, CompletionErrorResponse{
			Error: services.GetErrorMessage(err),
		})
	default:
		message := causeMessage(err)
		_ = utils.WriteJSON(w, http.StatusInternalServerError, CompletionErrorResponse{
			Error:   message,
			Details: services.GetErrorMessage(err),
		})
	}
}

// causeMessage returns the message of the error a DomainError wraps
func causeMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && domainErr.Err != nil {
		return domainErr.Err.Error()
	}
	return err.Error()
}

// decodeMessages accepts only a JSON array of messages
func decodeMessages(raw json.RawMessage) ([]providers.Message, bool) {
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	messages := []providers.Message{}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false
	}
	return messages, true
}
