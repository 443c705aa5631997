package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"go.uber.org/zap"
)

const chatHistoryColumns = `id, project_id, user_id, messages, model_used, provider,
		       tokens_used, cost, created_at, updated_at`

// ChatHistoryRepository implements the repositories.ChatHistoryRepository interface
type ChatHistoryRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewChatHistoryRepository creates a new chat history repository
func NewChatHistoryRepository(db *DB, logger *zap.Logger) repositories.ChatHistoryRepository {
	return &ChatHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new chat history
func (r *ChatHistoryRepository) Create(ctx context.Context, h *models.ChatHistory) error {
	query := `
		INSERT INTO chat_history (
			id, project_id, user_id, messages, model_used, provider,
			tokens_used, cost, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query,
		h.ID,
		h.ProjectID,
		h.UserID,
		string(h.Messages),
		h.ModelUsed,
		h.Provider,
		h.TokensUsed,
		h.Cost,
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat history: %w", err)
	}

	r.logger.Debug("chat history created",
		zap.String("id", h.ID.String()),
		zap.String("project_id", h.ProjectID))
	return nil
}

// UpdateMessages replaces messages, tokens and cost and reloads the row
func (r *ChatHistoryRepository) UpdateMessages(ctx context.Context, h *models.ChatHistory) error {
	query := `
		UPDATE chat_history
		SET messages = $3, tokens_used = $4, cost = $5, updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING ` + chatHistoryColumns

	row := bound(ctx, r.db, r.tx).QueryRowContext(ctx, query,
		h.ID,
		h.UserID,
		string(h.Messages),
		h.TokensUsed,
		h.Cost,
		time.Now(),
	)
	if err := scanChatHistory(row, h); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to update chat history: %w", err)
	}

	return nil
}

// GetForUser retrieves a chat history owned by userID
func (r *ChatHistoryRepository) GetForUser(ctx context.Context, id uuid.UUID, userID string) (*models.ChatHistory, error) {
	query := `SELECT ` + chatHistoryColumns + ` FROM chat_history WHERE id = $1 AND user_id = $2`

	h := &models.ChatHistory{}
	if err := scanChatHistory(bound(ctx, r.db, r.tx).QueryRowContext(ctx, query, id, userID), h); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}

	return h, nil
}

// ListByProject retrieves a user's histories for a project, newest first
func (r *ChatHistoryRepository) ListByProject(ctx context.Context, projectID, userID string) ([]*models.ChatHistory, error) {
	query := `SELECT ` + chatHistoryColumns + `
		FROM chat_history
		WHERE project_id = $1 AND user_id = $2
		ORDER BY created_at DESC`

	rows, err := bound(ctx, r.db, r.tx).QueryContext(ctx, query, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var histories []*models.ChatHistory
	for rows.Next() {
		h := &models.ChatHistory{}
		if err := scanChatHistory(rows, h); err != nil {
			return nil, fmt.Errorf("failed to scan chat history: %w", err)
		}
		histories = append(histories, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat history: %w", err)
	}

	return histories, nil
}

// Delete removes a history owned by userID
func (r *ChatHistoryRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	query := `DELETE FROM chat_history WHERE id = $1 AND user_id = $2`

	result, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete chat history: %w", err)
	}

	return expectAffected(result)
}

// WithTx returns a new repository instance bound to the transaction
func (r *ChatHistoryRepository) WithTx(tx repositories.Transaction) repositories.ChatHistoryRepository {
	return &ChatHistoryRepository{
		db:     r.db,
		tx:     asTx(tx),
		logger: r.logger,
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChatHistory(s scanner, h *models.ChatHistory) error {
	var messages []byte
	if err := s.Scan(
		&h.ID,
		&h.ProjectID,
		&h.UserID,
		&messages,
		&h.ModelUsed,
		&h.Provider,
		&h.TokensUsed,
		&h.Cost,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return err
	}
	h.Messages = json.RawMessage(messages)
	return nil
}
