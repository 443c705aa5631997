package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UsageAction is the kind of billable action being logged
type UsageAction string

const (
	UsageActionAIRequest     UsageAction = "ai_request"
	UsageActionDeployment    UsageAction = "deployment"
	UsageActionFileUpload    UsageAction = "file_upload"
	UsageActionProjectCreate UsageAction = "project_create"
	UsageActionProjectDelete UsageAction = "project_delete"
)

// IsValid reports whether a is one of the known usage actions
func (a UsageAction) IsValid() bool {
	switch a {
	case UsageActionAIRequest, UsageActionDeployment, UsageActionFileUpload,
		UsageActionProjectCreate, UsageActionProjectDelete:
		return true
	}
	return false
}

// UsageLog is one metered action
type UsageLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	ProjectID  *string         `json:"project_id,omitempty" db:"project_id"`
	ActionType UsageAction     `json:"action_type" db:"action_type"`
	ModelUsed  *string         `json:"model_used,omitempty" db:"model_used"`
	Provider   *string         `json:"provider,omitempty" db:"provider"`
	TokensUsed int             `json:"tokens_used" db:"tokens_used"`
	Cost       float64         `json:"cost" db:"cost"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"` // JSONB object, "{}" when empty
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the UsageLog model
func (UsageLog) TableName() string {
	return "usage_logs"
}

// NewUsageLog creates a new UsageLog instance
func NewUsageLog(userID string, action UsageAction) *UsageLog {
	return &UsageLog{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: action,
		Metadata:   json.RawMessage(`{}`),
		CreatedAt:  time.Now(),
	}
}

// WithProject attaches the log to a project. Empty ids are ignored.
func (u *UsageLog) WithProject(projectID string) *UsageLog {
	u.ProjectID = optionalString(projectID)
	return u
}

// WithModel records the model and provider used
func (u *UsageLog) WithModel(model, provider string) *UsageLog {
	u.ModelUsed = optionalString(model)
	u.Provider = optionalString(provider)
	return u
}

// WithUsage sets token and cost figures
func (u *UsageLog) WithUsage(tokens int, cost float64) *UsageLog {
	u.TokensUsed = tokens
	u.Cost = cost
	return u
}

// SetMetadata stores raw metadata; empty or null input keeps "{}"
func (u *UsageLog) SetMetadata(raw json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		u.Metadata = json.RawMessage(`{}`)
		return
	}
	u.Metadata = raw
}
