package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Project tests
func TestNewProject(t *testing.T) {
	p := NewProject("proj-1", "user-1", "My App")

	assert.Equal(t, "proj-1", p.ID)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "My App", p.Name)
	assert.Equal(t, ProjectVisibilityPrivate, p.Visibility)
	assert.Nil(t, p.LastOpenedAt)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestNewProject_DefaultName(t *testing.T) {
	p := NewProject("proj-1", "user-1", "")
	assert.Equal(t, DefaultProjectName, p.Name)
}

func TestProject_Touch(t *testing.T) {
	p := NewProject("proj-1", "user-1", "")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p.Touch(at)

	require.NotNil(t, p.LastOpenedAt)
	assert.Equal(t, at, *p.LastOpenedAt)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "projects", Project{}.TableName())
	assert.Equal(t, "project_files", ProjectFile{}.TableName())
	assert.Equal(t, "chat_history", ChatHistory{}.TableName())
	assert.Equal(t, "usage_logs", UsageLog{}.TableName())
}

// ProjectFile tests
func TestNewProjectFile(t *testing.T) {
	f := NewProjectFile("proj-1", "/src/App.tsx", "export default 1", false)

	assert.Equal(t, "proj-1", f.ProjectID)
	assert.Equal(t, "/src/App.tsx", f.Path)
	assert.Equal(t, len("export default 1"), f.Size)
	assert.Equal(t, "application/typescript", f.MimeType)
	assert.False(t, f.IsBinary)
}

func TestProjectFile_Entry(t *testing.T) {
	f := NewProjectFile("proj-1", "/logo.png", "iVBORw0KGgo=", true)

	assert.Equal(t, FileEntry{Type: FileEntryType, Content: "iVBORw0KGgo=", IsBinary: true}, f.Entry())
}

func TestMimeTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/index.js", "application/javascript"},
		{"/App.JSX", "application/javascript"},
		{"/main.ts", "application/typescript"},
		{"/package.json", "application/json"},
		{"/index.html", "text/html"},
		{"/styles/site.scss", "text/css"},
		{"/README.md", "text/markdown"},
		{"/photo.JPEG", "image/jpeg"},
		{"/icon.svg", "image/svg+xml"},
		{"/doc.pdf", "application/pdf"},
		{"/Makefile", DefaultMimeType},
		{"/archive.tar.gz", DefaultMimeType},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeTypeForPath(tt.path))
		})
	}
}

// ChatHistory tests
func TestNewChatHistory(t *testing.T) {
	msgs := json.RawMessage(`[{"role":"user","content":"hi"}]`)

	h := NewChatHistory("proj-1", "user-1", msgs).
		WithModel("deepseek-chat", "").
		WithUsage(42, 0.01)

	assert.NotEqual(t, uuid.Nil, h.ID)
	assert.Equal(t, "proj-1", h.ProjectID)
	assert.JSONEq(t, string(msgs), string(h.Messages))
	require.NotNil(t, h.ModelUsed)
	assert.Equal(t, "deepseek-chat", *h.ModelUsed)
	assert.Nil(t, h.Provider)
	assert.Equal(t, 42, h.TokensUsed)
	assert.Equal(t, 0.01, h.Cost)
}

func TestChatHistory_JSON(t *testing.T) {
	h := NewChatHistory("proj-1", "user-1", json.RawMessage(`[]`))

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []interface{}{}, out["messages"])
	assert.NotContains(t, out, "model_used")
	assert.NotContains(t, out, "provider")
}

// UsageLog tests
func TestUsageAction_IsValid(t *testing.T) {
	for _, a := range []UsageAction{
		UsageActionAIRequest,
		UsageActionDeployment,
		UsageActionFileUpload,
		UsageActionProjectCreate,
		UsageActionProjectDelete,
	} {
		assert.True(t, a.IsValid(), string(a))
	}
	assert.False(t, UsageAction("").IsValid())
	assert.False(t, UsageAction("AI_REQUEST").IsValid())
}

func TestNewUsageLog(t *testing.T) {
	log := NewUsageLog("user-1", UsageActionAIRequest).
		WithProject("").
		WithModel("gpt-4o", "LongCat").
		WithUsage(100, 0.002)

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Nil(t, log.ProjectID)
	require.NotNil(t, log.Provider)
	assert.Equal(t, "LongCat", *log.Provider)
	assert.Equal(t, 100, log.TokensUsed)
	assert.JSONEq(t, `{}`, string(log.Metadata))
}

func TestUsageLog_SetMetadata(t *testing.T) {
	log := NewUsageLog("user-1", UsageActionDeployment)

	log.SetMetadata(json.RawMessage(`{"target":"netlify"}`))
	assert.JSONEq(t, `{"target":"netlify"}`, string(log.Metadata))

	log.SetMetadata(json.RawMessage(`null`))
	assert.JSONEq(t, `{}`, string(log.Metadata))

	log.SetMetadata(nil)
	assert.JSONEq(t, `{}`, string(log.Metadata))
}
