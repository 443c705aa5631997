package chat

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"github.com/upb/bolt-saas/backend/services"
	"go.uber.org/zap"
)

// SaveInput is a chat save request
type SaveInput struct {
	ProjectID  string
	Messages   json.RawMessage
	ModelUsed  string
	Provider   string
	TokensUsed int
	Cost       float64

	// HistoryID selects an existing history to update; uuid.Nil inserts
	HistoryID uuid.UUID
}

// Stats is the token and cost total of a project's conversations
type Stats struct {
	TotalTokens int     `json:"totalTokens"`
	TotalCost   float64 `json:"totalCost"`
}

// Service stores chat histories for a user
type Service struct {
	repo   repositories.ChatHistoryRepository
	logger *zap.Logger
}

// NewService creates a new chat Service
func NewService(repo repositories.ChatHistoryRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Save inserts a new history or updates messages, tokens and cost of an existing one
func (s *Service) Save(ctx context.Context, userID string, in SaveInput) (*models.ChatHistory, error) {
	if in.ProjectID == "" {
		return nil, services.ErrProjectIDRequired
	}
	if !isJSONArray(in.Messages) {
		return nil, services.ErrMessagesNotArray
	}

	if in.HistoryID != uuid.Nil {
		h := &models.ChatHistory{
			ID:         in.HistoryID,
			UserID:     userID,
			Messages:   in.Messages,
			TokensUsed: in.TokensUsed,
			Cost:       in.Cost,
		}
		if err := s.repo.UpdateMessages(ctx, h); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrChatHistoryNotFound
			}
			return nil, services.WrapInternal("Failed to save chat history", err)
		}
		return h, nil
	}

	h := models.NewChatHistory(in.ProjectID, userID, in.Messages).
		WithModel(in.ModelUsed, in.Provider).
		WithUsage(in.TokensUsed, in.Cost)
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, services.WrapInternal("Failed to save chat history", err)
	}

	s.logger.Debug("chat history saved",
		zap.String("id", h.ID.String()),
		zap.String("project_id", in.ProjectID))
	return h, nil
}

// Get returns one of the caller's histories
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*models.ChatHistory, error) {
	h, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrChatHistoryNotFound
		}
		return nil, services.WrapInternal("Failed to load chat history", err)
	}
	return h, nil
}

// List returns the caller's histories for a project, newest first
func (s *Service) List(ctx context.Context, userID, projectID string) ([]*models.ChatHistory, error) {
	if projectID == "" {
		return nil, services.ErrProjectIDRequired
	}
	histories, err := s.repo.ListByProject(ctx, projectID, userID)
	if err != nil {
		return nil, services.WrapInternal("Failed to load chat histories", err)
	}
	if histories == nil {
		histories = []*models.ChatHistory{}
	}
	return histories, nil
}

// Delete removes one of the caller's histories
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrChatHistoryNotFound
		}
		return services.WrapInternal("Failed to delete chat history", err)
	}
	return nil
}

// ProjectStats sums tokens and cost across the caller's histories of a project
func (s *Service) ProjectStats(ctx context.Context, userID, projectID string) (*Stats, error) {
	histories, err := s.List(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{}
	for _, h := range histories {
		stats.TotalTokens += h.TokensUsed
		stats.TotalCost += h.Cost
	}
	return stats, nil
}

func isJSONArray(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var arr []json.RawMessage
	return json.Unmarshal(raw, &arr) == nil && arr != nil
}
