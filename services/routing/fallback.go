package routing

import (
	"context"
	"fmt"

	"github.com/upb/bolt-saas/backend/services/providers"
	"go.uber.org/zap"
)

// FallbackEntry is one step of the fallback chain
type FallbackEntry struct {
	// Key is the registry key supplying base URL and credential
	Key string

	// Provider is the display name used in annotations and responses
	Provider string

	// Models in preference order; only the first is used
	Models []string
}

// DefaultFallbackChain returns the built-in fallback order
func DefaultFallbackChain() []FallbackEntry {
	return []FallbackEntry{
		{
			Key:      "openrouter",
			Provider: "OpenRouter",
			Models: []string{
				"google/gemini-2.0-flash-thinking-exp:free",
				"google/gemini-flash-1.5:free",
				"qwen/qwen-2.5-coder-32b-instruct:free",
				"meta-llama/llama-3.1-405b-instruct:free",
			},
		},
		{
			Key:      "longcat",
			Provider: "LongCat",
			Models:   []string{"gemini-2.0-flash-exp", "gpt-4o-mini", "claude-3-5-sonnet-20241022"},
		},
		{
			Key:      "deepseek",
			Provider: "Deepseek",
			Models:   []string{"deepseek-coder", "deepseek-chat"},
		},
	}
}

// FallbackPolicy walks a fixed chain once per request. It advances only on
// quota or auth errors and never touches health counters.
type FallbackPolicy struct {
	registry *providers.Registry
	client   providers.ChatClient
	chain    []FallbackEntry
	logger   *zap.Logger
	opts     options
}

// NewFallbackPolicy creates a fallback policy. A nil chain uses DefaultFallbackChain.
func NewFallbackPolicy(registry *providers.Registry, client providers.ChatClient, chain []FallbackEntry, logger *zap.Logger, opts ...Option) *FallbackPolicy {
	if chain == nil {
		chain = DefaultFallbackChain()
	}
	return &FallbackPolicy{
		registry: registry,
		client:   client,
		chain:    chain,
		logger:   logger,
		opts:     buildOptions(opts),
	}
}

// Name returns "fallback"
func (f *FallbackPolicy) Name() string {
	return "fallback"
}

// Status returns the registry snapshot
func (f *FallbackPolicy) Status() map[string]providers.ProviderStatus {
	return f.registry.Status()
}

// MakeRequest tries each chain entry in order
func (f *FallbackPolicy) MakeRequest(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	if len(f.chain) == 0 {
		return nil, ErrNoProviderAvailable
	}

	for i, entry := range f.chain {
		last := i == len(f.chain)-1
		model := DefaultModel
		if len(entry.Models) > 0 {
			model = entry.Models[0]
		}

		f.logger.Info("attempting provider",
			zap.String("provider", entry.Provider),
			zap.String("model", model))

		resp, err := f.try(ctx, entry, model, req)
		if err == nil {
			f.logger.Info("provider succeeded", zap.String("provider", entry.Provider))
			return resp, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		f.logger.Error("provider failed",
			zap.String("provider", entry.Provider),
			zap.String("model", model),
			zap.Error(err))

		if last {
			f.logger.Error("all providers exhausted")
			return nil, &AllProvidersFailedError{Last: err}
		}
		if !IsQuotaOrAuth(err) {
			return nil, err
		}
		f.logger.Info("quota or auth error, trying next provider")
	}

	// unreachable: the last entry always returns
	return nil, ErrNoProviderAvailable
}

func (f *FallbackPolicy) try(ctx context.Context, entry FallbackEntry, model string, req *providers.Request) (*providers.Response, error) {
	provider, err := f.registry.Get(entry.Key)
	if err != nil || !provider.HasAPIKey() {
		// Reported as an auth failure so the chain moves on without a network call.
		return nil, fmt.Errorf("%s: API key not configured (unauthorized)", entry.Provider)
	}

	chatReq := req.ChatRequest(model)
	annotate(chatReq.Messages, model, entry.Provider)

	start := f.opts.now()
	completion, err := f.client.Complete(ctx, provider, chatReq)
	elapsed := f.opts.now().Sub(start).Seconds()
	if err != nil {
		f.opts.metrics.RecordFailure(provider.Key, model, Classify(err), elapsed)
		return nil, err
	}

	f.registry.RecordSuccess(provider.Key, f.opts.now())
	f.opts.metrics.RecordSuccess(provider.Key, model, elapsed)

	return &providers.Response{
		Provider:   entry.Provider,
		Model:      model,
		Content:    completion.Content,
		TokensUsed: completion.TotalTokens,
		Cost:       EstimateCost(entry.Provider, model, completion.TotalTokens),
	}, nil
}

// annotate prefixes the last message with model and provider when it is a
// user message with text content. messages must already be a private copy.
func annotate(messages []providers.Message, model, provider string) {
	if len(messages) == 0 {
		return
	}
	lastIdx := len(messages) - 1
	if messages[lastIdx].Role != "user" || messages[lastIdx].Parts != nil {
		return
	}
	messages[lastIdx].Content = fmt.Sprintf("[Model: %s]\n\n[Provider: %s]\n\n%s", model, provider, messages[lastIdx].Content)
}
