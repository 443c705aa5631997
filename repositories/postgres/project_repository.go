package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"go.uber.org/zap"
)

// ProjectRepository implements the repositories.ProjectRepository interface
type ProjectRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB, logger *zap.Logger) repositories.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// GetForUser retrieves a project owned by userID
func (r *ProjectRepository) GetForUser(ctx context.Context, id, userID string) (*models.Project, error) {
	query := `
		SELECT id, user_id, name, description, framework, visibility,
		       created_at, updated_at, last_opened_at
		FROM projects
		WHERE id = $1 AND user_id = $2
	`

	project := &models.Project{}
	err := bound(ctx, r.db, r.tx).QueryRowContext(ctx, query, id, userID).Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.Description,
		&project.Framework,
		&project.Visibility,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.LastOpenedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// Create inserts a new project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (
			id, user_id, name, description, framework, visibility,
			created_at, updated_at, last_opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Description,
		project.Framework,
		project.Visibility,
		project.CreatedAt,
		project.UpdatedAt,
		project.LastOpenedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	r.logger.Debug("project created", zap.String("id", project.ID))
	return nil
}

// Update writes the editable fields of a project
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET name = $3, description = $4, framework = $5, last_opened_at = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2
	`

	project.UpdatedAt = time.Now()
	result, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Description,
		project.Framework,
		project.LastOpenedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	return expectAffected(result)
}

// TouchLastOpened stamps last_opened_at
func (r *ProjectRepository) TouchLastOpened(ctx context.Context, id, userID string, at time.Time) error {
	query := `UPDATE projects SET last_opened_at = $3 WHERE id = $1 AND user_id = $2`

	result, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}

	return expectAffected(result)
}

// WithTx returns a new repository instance bound to the transaction
func (r *ProjectRepository) WithTx(tx repositories.Transaction) repositories.ProjectRepository {
	return &ProjectRepository{
		db:     r.db,
		tx:     asTx(tx),
		logger: r.logger,
	}
}

// expectAffected maps a zero-row update or delete to ErrNotFound
func expectAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
