package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/bolt-saas/backend/models"
)

// ErrNotFound is returned when a row does not exist or is not owned by the caller
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context carrying the transaction
	Context() context.Context
}

// ProjectRepository handles project rows. Every lookup is scoped to the owner.
type ProjectRepository interface {
	// GetForUser retrieves a project owned by userID
	GetForUser(ctx context.Context, id, userID string) (*models.Project, error)

	// Create inserts a new project
	Create(ctx context.Context, project *models.Project) error

	// Update writes name, description, framework and last_opened_at
	Update(ctx context.Context, project *models.Project) error

	// TouchLastOpened stamps last_opened_at
	TouchLastOpened(ctx context.Context, id, userID string, at time.Time) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ProjectRepository
}

// ProjectFileRepository handles the files of a project
type ProjectFileRepository interface {
	// ListByProject retrieves every file of a project
	ListByProject(ctx context.Context, projectID string) ([]*models.ProjectFile, error)

	// ListPaths retrieves the stored paths of a project
	ListPaths(ctx context.Context, projectID string) ([]string, error)

	// Upsert inserts or updates files on (project_id, path) in one statement
	Upsert(ctx context.Context, files []*models.ProjectFile) error

	// DeletePaths removes the given paths of a project
	DeletePaths(ctx context.Context, projectID string, paths []string) (int64, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ProjectFileRepository
}

// ChatHistoryRepository handles saved conversations
type ChatHistoryRepository interface {
	// Create inserts a new chat history
	Create(ctx context.Context, history *models.ChatHistory) error

	// UpdateMessages replaces messages, tokens and cost of a history owned by
	// history.UserID and refreshes the struct from the stored row
	UpdateMessages(ctx context.Context, history *models.ChatHistory) error

	// GetForUser retrieves a chat history owned by userID
	GetForUser(ctx context.Context, id uuid.UUID, userID string) (*models.ChatHistory, error)

	// ListByProject retrieves a user's histories for a project, newest first
	ListByProject(ctx context.Context, projectID, userID string) ([]*models.ChatHistory, error)

	// Delete removes a history owned by userID
	Delete(ctx context.Context, id uuid.UUID, userID string) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ChatHistoryRepository
}

// UsageLogRepository handles usage log rows
type UsageLogRepository interface {
	// Insert inserts a new usage log
	Insert(ctx context.Context, log *models.UsageLog) error

	// ListByUser retrieves a user's logs with pagination, newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.UsageLog, error)

	// GetStats aggregates a user's logs; Recent* figures count rows since since
	GetStats(ctx context.Context, userID string, since time.Time) (*UsageStats, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) UsageLogRepository
}

// UsageStats represents aggregated usage for one user
type UsageStats struct {
	TotalRequests  int     `json:"totalRequests"`
	TotalTokens    int     `json:"totalTokens"`
	TotalCost      float64 `json:"totalCost"`
	RecentRequests int     `json:"monthlyRequests"`
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Projects     ProjectRepository
	ProjectFiles ProjectFileRepository
	ChatHistory  ChatHistoryRepository
	UsageLogs    UsageLogRepository
}
