package models

import (
	"path"
	"strings"
	"time"
)

// ProjectVisibility controls who can open a project
type ProjectVisibility string

const (
	ProjectVisibilityPrivate ProjectVisibility = "private"
	ProjectVisibilityPublic  ProjectVisibility = "public"
)

// DefaultProjectName is used when a save request carries no name
const DefaultProjectName = "Untitled Project"

// FileEntryType is the kind of an entry in a project file map
const FileEntryType = "file"

// Project represents a saved workspace project owned by one user
type Project struct {
	ID           string            `json:"id" db:"id"` // Client-generated
	UserID       string            `json:"user_id" db:"user_id"`
	Name         string            `json:"name" db:"name"`
	Description  *string           `json:"description,omitempty" db:"description"`
	Framework    *string           `json:"framework,omitempty" db:"framework"`
	Visibility   ProjectVisibility `json:"visibility" db:"visibility"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
	LastOpenedAt *time.Time        `json:"last_opened_at,omitempty" db:"last_opened_at"`
}

// TableName returns the table name for the Project model
func (Project) TableName() string {
	return "projects"
}

// NewProject creates a private project. An empty name becomes DefaultProjectName.
func NewProject(id, userID, name string) *Project {
	if name == "" {
		name = DefaultProjectName
	}
	now := time.Now()
	return &Project{
		ID:         id,
		UserID:     userID,
		Name:       name,
		Visibility: ProjectVisibilityPrivate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch stamps last_opened_at
func (p *Project) Touch(at time.Time) {
	p.LastOpenedAt = &at
}

// ProjectFile is one file of a project, unique on (project_id, path)
type ProjectFile struct {
	ProjectID string    `json:"project_id" db:"project_id"`
	Path      string    `json:"path" db:"path"`
	Content   string    `json:"content" db:"content"`
	Size      int       `json:"size" db:"size"`
	MimeType  string    `json:"mime_type" db:"mime_type"`
	IsBinary  bool      `json:"is_binary" db:"is_binary"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the ProjectFile model
func (ProjectFile) TableName() string {
	return "project_files"
}

// NewProjectFile builds a file row; size and mime type derive from content and path
func NewProjectFile(projectID, filePath, content string, isBinary bool) *ProjectFile {
	return &ProjectFile{
		ProjectID: projectID,
		Path:      filePath,
		Content:   content,
		Size:      len(content),
		MimeType:  MimeTypeForPath(filePath),
		IsBinary:  isBinary,
		UpdatedAt: time.Now(),
	}
}

// FileEntry is the client-side representation of a file in a project file map
type FileEntry struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	IsBinary bool   `json:"isBinary"`
}

// Entry converts the row to its file map form
func (f *ProjectFile) Entry() FileEntry {
	return FileEntry{Type: FileEntryType, Content: f.Content, IsBinary: f.IsBinary}
}

var mimeTypes = map[string]string{
	"js":   "application/javascript",
	"jsx":  "application/javascript",
	"ts":   "application/typescript",
	"tsx":  "application/typescript",
	"json": "application/json",
	"html": "text/html",
	"css":  "text/css",
	"scss": "text/css",
	"md":   "text/markdown",
	"txt":  "text/plain",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"pdf":  "application/pdf",
}

// DefaultMimeType is returned for unknown extensions
const DefaultMimeType = "application/octet-stream"

// MimeTypeForPath maps a file extension (case-insensitive) to its mime type
func MimeTypeForPath(filePath string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filePath)), ".")
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return DefaultMimeType
}
