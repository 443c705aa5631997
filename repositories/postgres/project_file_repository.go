package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"go.uber.org/zap"
)

const projectFileColumns = 7

// ProjectFileRepository implements the repositories.ProjectFileRepository interface
type ProjectFileRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewProjectFileRepository creates a new project file repository
func NewProjectFileRepository(db *DB, logger *zap.Logger) repositories.ProjectFileRepository {
	return &ProjectFileRepository{
		db:     db,
		logger: logger,
	}
}

// ListByProject retrieves every file of a project ordered by path
func (r *ProjectFileRepository) ListByProject(ctx context.Context, projectID string) ([]*models.ProjectFile, error) {
	query := `
		SELECT project_id, path, content, size, mime_type, is_binary, updated_at
		FROM project_files
		WHERE project_id = $1
		ORDER BY path
	`

	rows, err := bound(ctx, r.db, r.tx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project files: %w", err)
	}
	defer rows.Close()

	var files []*models.ProjectFile
	for rows.Next() {
		f := &models.ProjectFile{}
		if err := rows.Scan(
			&f.ProjectID,
			&f.Path,
			&f.Content,
			&f.Size,
			&f.MimeType,
			&f.IsBinary,
			&f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project file: %w", err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project files: %w", err)
	}

	return files, nil
}

// ListPaths retrieves the stored paths of a project
func (r *ProjectFileRepository) ListPaths(ctx context.Context, projectID string) ([]string, error) {
	query := `SELECT path FROM project_files WHERE project_id = $1`

	rows, err := bound(ctx, r.db, r.tx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project file paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan project file path: %w", err)
		}
		paths = append(paths, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project file paths: %w", err)
	}

	return paths, nil
}

// Upsert writes files in a single multi-row statement. Callers batch.
func (r *ProjectFileRepository) Upsert(ctx context.Context, files []*models.ProjectFile) error {
	if len(files) == 0 {
		return nil
	}

	query, args := buildFileUpsert(files)
	if _, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert project files: %w", err)
	}

	r.logger.Debug("project files upserted",
		zap.String("project_id", files[0].ProjectID),
		zap.Int("count", len(files)))
	return nil
}

func buildFileUpsert(files []*models.ProjectFile) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO project_files (project_id, path, content, size, mime_type, is_binary, updated_at) VALUES ")

	args := make([]interface{}, 0, len(files)*projectFileColumns)
	for i, f := range files {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * projectFileColumns
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, f.ProjectID, f.Path, f.Content, f.Size, f.MimeType, f.IsBinary, f.UpdatedAt)
	}

	sb.WriteString(` ON CONFLICT (project_id, path) DO UPDATE SET
		content = EXCLUDED.content,
		size = EXCLUDED.size,
		mime_type = EXCLUDED.mime_type,
		is_binary = EXCLUDED.is_binary,
		updated_at = EXCLUDED.updated_at`)

	return sb.String(), args
}

// DeletePaths removes the given paths of a project
func (r *ProjectFileRepository) DeletePaths(ctx context.Context, projectID string, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	query := `DELETE FROM project_files WHERE project_id = $1 AND path = ANY($2)`

	result, err := bound(ctx, r.db, r.tx).ExecContext(ctx, query, projectID, pq.Array(paths))
	if err != nil {
		return 0, fmt.Errorf("failed to delete project files: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *ProjectFileRepository) WithTx(tx repositories.Transaction) repositories.ProjectFileRepository {
	return &ProjectFileRepository{
		db:     r.db,
		tx:     asTx(tx),
		logger: r.logger,
	}
}
