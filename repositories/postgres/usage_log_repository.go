package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"go.uber.org/zap"
)

// UsageLogRepository implements the repositories.UsageLogRepository interface
type UsageLogRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewUsageLogRepository creates a new usage log repository
func NewUsageLogRepository(db *DB, logger *zap.Logger) repositories.UsageLogRepository {
	return &UsageLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new usage log
func (r *UsageLogRepository) Insert(ctx context.Context, log *models.UsageLog) error {
	query := `
		INSERT INTO usage_logs (
			id, user_id, project_id, action_type, model_used, provider,
			tokens_used, cost, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	metadata := string(log.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	_, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.ProjectID,
		log.ActionType,
		log.ModelUsed,
		log.Provider,
		log.TokensUsed,
		log.Cost,
		metadata,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}

	r.logger.Debug("usage log inserted",
		zap.String("id", log.ID.String()),
		zap.String("action", string(log.ActionType)))
	return nil
}

// ListByUser retrieves a user's logs with pagination, newest first
func (r *UsageLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.UsageLog, error) {
	query := `
		SELECT id, user_id, project_id, action_type, model_used, provider,
		       tokens_used, cost, metadata, created_at
		FROM usage_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := bound(ctx, r.db, r.tx).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.UsageLog
	for rows.Next() {
		log := &models.UsageLog{}
		var metadata []byte
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.ProjectID,
			&log.ActionType,
			&log.ModelUsed,
			&log.Provider,
			&log.TokensUsed,
			&log.Cost,
			&metadata,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		log.SetMetadata(json.RawMessage(metadata))
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage logs: %w", err)
	}

	return logs, nil
}

// GetStats aggregates a user's logs
func (r *UsageLogRepository) GetStats(ctx context.Context, userID string, since time.Time) (*repositories.UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COALESCE(SUM(tokens_used), 0) as total_tokens,
			COALESCE(SUM(cost), 0) as total_cost,
			COUNT(*) FILTER (WHERE created_at >= $2) as recent_requests
		FROM usage_logs
		WHERE user_id = $1
	`

	stats := &repositories.UsageStats{}
	err := bound(ctx, r.db, r.tx).QueryRowContext(ctx, query, userID, since).Scan(
		&stats.TotalRequests,
		&stats.TotalTokens,
		&stats.TotalCost,
		&stats.RecentRequests,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	return stats, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *UsageLogRepository) WithTx(tx repositories.Transaction) repositories.UsageLogRepository {
	return &UsageLogRepository{
		db:     r.db,
		tx:     asTx(tx),
		logger: r.logger,
	}
}
