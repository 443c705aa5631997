package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Request defaults applied when the caller leaves a field unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// ChatClient performs one upstream chat-completion call against a provider
type ChatClient interface {
	// Complete posts req to the provider's {baseUrl}/chat/completions endpoint
	Complete(ctx context.Context, provider ProviderState, req *ChatRequest) (*Completion, error)
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// Parts holds an array-form content (text and image parts) verbatim.
	// When set it is sent instead of Content.
	Parts json.RawMessage `json:"-"`
}

// ErrInvalidContent is returned for message content that is neither a string nor an array
var ErrInvalidContent = errors.New("message content must be a string or an array of parts")

// UnmarshalJSON accepts content as a string or as an array of parts
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	m.Role = wire.Role
	m.Content = ""
	m.Parts = nil

	content := bytes.TrimSpace(wire.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
		return nil
	case content[0] == '"':
		return json.Unmarshal(content, &m.Content)
	case content[0] == '[':
		m.Parts = append(json.RawMessage(nil), content...)
		return nil
	default:
		return ErrInvalidContent
	}
}

// MarshalJSON writes Parts when present and Content otherwise
func (m Message) MarshalJSON() ([]byte, error) {
	wire := struct {
		Role    string      `json:"role"`
		Content interface{} `json:"content"`
	}{Role: m.Role, Content: m.Content}
	if m.Parts != nil {
		wire.Content = m.Parts
	}
	return json.Marshal(wire)
}

// Request is the normalized inbound completion request
type Request struct {
	// Messages in the conversation
	Messages []Message `json:"messages"`

	// Temperature controls randomness; nil means DefaultTemperature
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens limits the response length; nil or zero means DefaultMaxTokens
	MaxTokens *int `json:"maxTokens,omitempty"`

	// Stream is forwarded upstream as is
	Stream bool `json:"stream,omitempty"`
}

// ChatRequest builds the upstream payload for model with defaults applied.
// The message slice is copied so callers may annotate it freely.
func (r *Request) ChatRequest(model string) *ChatRequest {
	temperature := DefaultTemperature
	if r.Temperature != nil {
		temperature = *r.Temperature
	}
	maxTokens := DefaultMaxTokens
	if r.MaxTokens != nil && *r.MaxTokens > 0 {
		maxTokens = *r.MaxTokens
	}

	messages := make([]Message, len(r.Messages))
	copy(messages, r.Messages)

	return &ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      r.Stream,
	}
}

// Response is the normalized outbound completion result
type Response struct {
	// Provider display name that served the request (e.g. "DeepSeek")
	Provider string `json:"provider"`

	// Model used for the completion
	Model string `json:"model"`

	// Content is the assistant text
	Content string `json:"content"`

	// TokensUsed is the upstream total token count
	TokensUsed int `json:"tokensUsed"`

	// Cost is the estimated price in USD
	Cost float64 `json:"cost"`
}

// ChatRequest is the OpenAI-compatible upstream request body.
// Every field is always serialized.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

// ChatResponse is the subset of the upstream response body that is read
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of a single upstream call
type Completion struct {
	// Content is choices[0].message.content, empty when absent
	Content string

	// TotalTokens is usage.total_tokens, zero when absent
	TotalTokens int

	// Latency of the upstream call
	Latency time.Duration
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates the failure is transient (5xx, 429 or transport)
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// NewAPIError builds the error for a non-2xx upstream reply.
// The message format "API Error (<status>): <body>" is what the classifier inspects.
func NewAPIError(provider string, statusCode int, body string) *ProviderError {
	return NewProviderError(
		provider,
		fmt.Sprintf("API Error (%d): %s", statusCode, body),
		statusCode,
		statusCode == 429 || statusCode >= 500,
		nil,
	)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Retryable
	}
	return false
}
