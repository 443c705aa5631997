package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatHistory is a saved conversation attached to a project
type ChatHistory struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ProjectID  string          `json:"project_id" db:"project_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Messages   json.RawMessage `json:"messages" db:"messages"` // JSONB array, stored as sent
	ModelUsed  *string         `json:"model_used,omitempty" db:"model_used"`
	Provider   *string         `json:"provider,omitempty" db:"provider"`
	TokensUsed int             `json:"tokens_used" db:"tokens_used"`
	Cost       float64         `json:"cost" db:"cost"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the ChatHistory model
func (ChatHistory) TableName() string {
	return "chat_history"
}

// NewChatHistory creates a new ChatHistory instance
func NewChatHistory(projectID, userID string, messages json.RawMessage) *ChatHistory {
	now := time.Now()
	return &ChatHistory{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    userID,
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithModel records which model and provider produced the conversation.
// Empty values are stored as NULL.
func (c *ChatHistory) WithModel(model, provider string) *ChatHistory {
	c.ModelUsed = optionalString(model)
	c.Provider = optionalString(provider)
	return c
}

// WithUsage sets token and cost totals
func (c *ChatHistory) WithUsage(tokens int, cost float64) *ChatHistory {
	c.TokensUsed = tokens
	c.Cost = cost
	return c
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
