package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/upb/bolt-saas/backend/services/providers"
)

const defaultTimeout = 60 * time.Second

// Client calls any OpenAI-compatible chat-completions endpoint. Per-vendor
// differences (base URL, extra headers) come from the provider state.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose calls time out after timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP wraps an existing http.Client
func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Complete performs one chat completion call. It never retries.
func (c *Client) Complete(ctx context.Context, p providers.ProviderState, req *providers.ChatRequest) (*providers.Completion, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, providers.NewProviderError(p.Name, "Failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(p.Name, "Failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	for k, v := range p.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(p.Name, "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(p.Name, "Failed to read response", httpResp.StatusCode, true, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, providers.NewAPIError(p.Name, httpResp.StatusCode, string(respBody))
	}

	var chatResp providers.ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(p.Name, "Failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	completion := &providers.Completion{Latency: time.Since(startTime)}
	if len(chatResp.Choices) > 0 {
		completion.Content = chatResp.Choices[0].Message.Content
	}
	if chatResp.Usage != nil {
		completion.TotalTokens = chatResp.Usage.TotalTokens
	}
	return completion, nil
}
