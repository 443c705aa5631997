package project

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/upb/bolt-saas/backend/models"
	"github.com/upb/bolt-saas/backend/repositories"
	"github.com/upb/bolt-saas/backend/services"
	"go.uber.org/zap"
)

// UpsertBatchSize bounds the rows written per upsert statement
const UpsertBatchSize = 100

// FileMap is the client's path → entry map. Only entries of type "file" are stored.
type FileMap map[string]*models.FileEntry

// SaveInput is a save request from the editor
type SaveInput struct {
	ProjectID   string
	Name        string
	Description *string
	Framework   *string

	// Files is nil when the request carried no file map; the stored files are
	// then left untouched.
	Files FileMap
}

// Loaded is a project together with its file map
type Loaded struct {
	Project *models.Project
	Files   map[string]models.FileEntry
}

// Service saves and loads projects for a user
type Service struct {
	projects repositories.ProjectRepository
	files    repositories.ProjectFileRepository
	txMgr    repositories.TransactionManager
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new project Service. txMgr may be nil, in which case
// writes are not wrapped in a transaction.
func NewService(projects repositories.ProjectRepository, files repositories.ProjectFileRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *Service {
	return &Service{
		projects: projects,
		files:    files,
		txMgr:    txMgr,
		logger:   logger,
		now:      time.Now,
	}
}

// Save creates or updates the caller's project and synchronizes its files
func (s *Service) Save(ctx context.Context, userID string, in SaveInput) (*models.Project, error) {
	if in.ProjectID == "" {
		return nil, services.ErrProjectIDRequired
	}

	save := func(ctx context.Context, projects repositories.ProjectRepository, files repositories.ProjectFileRepository) (*models.Project, error) {
		project, err := s.upsertProject(ctx, projects, userID, in)
		if err != nil {
			return nil, err
		}
		if in.Files != nil {
			if err := s.syncFiles(ctx, files, in.ProjectID, in.Files); err != nil {
				return nil, err
			}
		}
		return project, nil
	}

	if s.txMgr == nil {
		return save(ctx, s.projects, s.files)
	}

	return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.Project, error) {
		return save(ctx, s.projects.WithTx(tx), s.files.WithTx(tx))
	})
}

func (s *Service) upsertProject(ctx context.Context, projects repositories.ProjectRepository, userID string, in SaveInput) (*models.Project, error) {
	existing, err := projects.GetForUser(ctx, in.ProjectID, userID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.WrapInternal("Failed to save project", err)
	}

	if existing == nil {
		project := models.NewProject(in.ProjectID, userID, in.Name)
		project.Description = in.Description
		project.Framework = in.Framework
		if err := projects.Create(ctx, project); err != nil {
			return nil, services.WrapInternal("Failed to save project", err)
		}
		s.logger.Info("project created",
			zap.String("project_id", project.ID),
			zap.String("user_id", userID))
		return project, nil
	}

	existing.Name = in.Name
	if existing.Name == "" {
		existing.Name = models.DefaultProjectName
	}
	existing.Description = in.Description
	existing.Framework = in.Framework
	existing.Touch(s.now())
	if err := projects.Update(ctx, existing); err != nil {
		return nil, services.WrapInternal("Failed to save project", err)
	}
	return existing, nil
}

// syncFiles upserts every file entry in batches, then deletes stored paths
// that are no longer present in the map
func (s *Service) syncFiles(ctx context.Context, files repositories.ProjectFileRepository, projectID string, entries FileMap) error {
	existing, err := files.ListPaths(ctx, projectID)
	if err != nil {
		return services.WrapInternal("Failed to save project files", err)
	}

	paths := make([]string, 0, len(entries))
	for p, entry := range entries {
		if entry != nil && entry.Type == models.FileEntryType {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	rows := make([]*models.ProjectFile, 0, len(paths))
	for _, p := range paths {
		e := entries[p]
		rows = append(rows, models.NewProjectFile(projectID, p, e.Content, e.IsBinary))
	}

	for start := 0; start < len(rows); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := files.Upsert(ctx, rows[start:end]); err != nil {
			return services.WrapInternal("Failed to save project files", err)
		}
	}

	// Any key in the map, folders included, keeps its stored path.
	var stale []string
	for _, p := range existing {
		if _, ok := entries[p]; !ok {
			stale = append(stale, p)
		}
	}
	if len(stale) > 0 {
		deleted, err := files.DeletePaths(ctx, projectID, stale)
		if err != nil {
			return services.WrapInternal("Failed to save project files", err)
		}
		s.logger.Debug("removed stale project files",
			zap.String("project_id", projectID),
			zap.Int64("deleted", deleted))
	}

	return nil
}

// Load returns the caller's project and its files and stamps last_opened_at
func (s *Service) Load(ctx context.Context, userID, projectID string) (*Loaded, error) {
	if projectID == "" {
		return nil, services.ErrProjectIDRequired
	}

	project, err := s.projects.GetForUser(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrProjectNotFound
		}
		return nil, services.WrapInternal("Failed to load project", err)
	}

	rows, err := s.files.ListByProject(ctx, projectID)
	if err != nil {
		return nil, services.WrapInternal("Failed to load project", err)
	}

	fileMap := make(map[string]models.FileEntry, len(rows))
	for _, f := range rows {
		fileMap[f.Path] = f.Entry()
	}

	openedAt := s.now()
	if err := s.projects.TouchLastOpened(ctx, projectID, userID, openedAt); err != nil {
		s.logger.Warn("failed to update last_opened_at",
			zap.String("project_id", projectID),
			zap.Error(err))
	} else {
		project.Touch(openedAt)
	}

	return &Loaded{Project: project, Files: fileMap}, nil
}
