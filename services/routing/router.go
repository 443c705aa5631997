package routing

import (
	"context"
	"errors"
	"time"

	"github.com/upb/bolt-saas/backend/services/providers"
	"go.uber.org/zap"
)

// DefaultModel is used when the selected provider lists no models
const DefaultModel = "gpt-4o-mini"

// Policy turns a normalized request into a normalized response using the
// shared provider registry.
type Policy interface {
	// Name identifies the policy ("stateful" or "fallback")
	Name() string

	// MakeRequest executes the request, failing over between providers
	MakeRequest(ctx context.Context, req *providers.Request) (*providers.Response, error)

	// Status returns a credential-free snapshot of every provider
	Status() map[string]providers.ProviderStatus
}

// Config holds router tuning
type Config struct {
	// ErrorThreshold is the consecutive error count that marks a provider unavailable
	ErrorThreshold int

	// MaxAttempts bounds upstream calls per request
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number before a generic retry.
	// Zero selects the default; a negative value disables the wait.
	BaseDelay time.Duration

	// DefaultModel is used when a provider lists no models
	DefaultModel string
}

// DefaultConfig returns the standard router configuration
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 5,
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		DefaultModel:   DefaultModel,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = d.ErrorThreshold
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	switch {
	case c.BaseDelay == 0:
		c.BaseDelay = d.BaseDelay
	case c.BaseDelay < 0:
		c.BaseDelay = 0
	}
	if c.DefaultModel == "" {
		c.DefaultModel = d.DefaultModel
	}
	return c
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Router or FallbackPolicy
type Option func(*options)

type options struct {
	metrics *Metrics
	sleep   SleepFunc
	now     func() time.Time
}

// WithMetrics records routing metrics
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSleep replaces the retry wait, mainly for tests
func WithSleep(fn SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// WithClock replaces time.Now
func WithClock(fn func() time.Time) Option {
	return func(o *options) { o.now = fn }
}

func buildOptions(opts []Option) options {
	o := options{sleep: contextSleep, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Router is the stateful policy. It keeps a current provider, counts
// consecutive failures per provider and fails over by priority.
type Router struct {
	registry *providers.Registry
	client   providers.ChatClient
	config   Config
	logger   *zap.Logger
	opts     options
}

// NewRouter creates a stateful router over registry
func NewRouter(registry *providers.Registry, client providers.ChatClient, config Config, logger *zap.Logger, opts ...Option) *Router {
	return &Router{
		registry: registry,
		client:   client,
		config:   config.withDefaults(),
		logger:   logger,
		opts:     buildOptions(opts),
	}
}

// Name returns "stateful"
func (r *Router) Name() string {
	return "stateful"
}

// Config returns the effective configuration
func (r *Router) Config() Config {
	return r.config
}

// CurrentProvider returns the current provider when it is still eligible,
// otherwise the result of SelectProvider.
func (r *Router) CurrentProvider() (providers.ProviderState, error) {
	if key := r.registry.Current(); key != "" {
		p, err := r.registry.Get(key)
		if err == nil && p.Eligible(r.config.ErrorThreshold) {
			return p, nil
		}
	}
	return r.SelectProvider()
}

// SelectProvider makes the best eligible provider current. When nothing is
// eligible every provider is reset once and selection runs again.
func (r *Router) SelectProvider() (providers.ProviderState, error) {
	eligible := r.registry.Eligible(r.config.ErrorThreshold, "")
	if len(eligible) == 0 {
		r.registry.ResetAll()
		r.opts.metrics.RecordReset("exhausted")
		r.publishHealth()
		r.logger.Warn("no eligible provider, reset all providers")

		eligible = r.registry.Eligible(r.config.ErrorThreshold, "")
		if len(eligible) == 0 {
			return providers.ProviderState{}, ErrNoProviderAvailable
		}
	}

	next := eligible[0]
	r.makeCurrent(next)
	return next, nil
}

func (r *Router) makeCurrent(p providers.ProviderState) {
	prev := r.registry.Current()
	if err := r.registry.SetCurrent(p.Key); err != nil {
		return
	}
	if prev != p.Key {
		r.logger.Info("switched provider",
			zap.String("from", prev),
			zap.String("to", p.Key),
			zap.String("name", p.Name))
	}
}

// switchFrom moves to the best eligible provider other than failed. The
// current pointer is left alone when there is no alternative.
func (r *Router) switchFrom(failed string) {
	alternatives := r.registry.Eligible(r.config.ErrorThreshold, failed)
	if len(alternatives) == 0 {
		r.logger.Warn("no alternative provider to switch to", zap.String("provider", failed))
		return
	}
	r.makeCurrent(alternatives[0])
}

// BestModel returns the first model of the current provider
func (r *Router) BestModel() string {
	p, err := r.CurrentProvider()
	if err != nil {
		return r.config.DefaultModel
	}
	return r.modelFor(p)
}

func (r *Router) modelFor(p providers.ProviderState) string {
	if len(p.Models) == 0 {
		return r.config.DefaultModel
	}
	return p.Models[0]
}

// ForceProvider makes key current regardless of health
func (r *Router) ForceProvider(key string) error {
	p, err := r.registry.Get(key)
	if err != nil {
		return ErrUnknownProvider
	}
	if !p.HasAPIKey() {
		return ErrProviderNotConfigured
	}
	if err := r.registry.SetCurrent(key); err != nil {
		return ErrUnknownProvider
	}
	r.logger.Info("forced provider", zap.String("provider", key))
	return nil
}

// Status returns the registry snapshot
func (r *Router) Status() map[string]providers.ProviderStatus {
	return r.registry.Status()
}

// MakeRequest runs up to MaxAttempts upstream calls. Quota and auth failures
// switch provider and retry at once; other failures wait attempt×BaseDelay
// and retry the same provider.
func (r *Router) MakeRequest(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		provider, err := r.CurrentProvider()
		if err != nil {
			r.logger.Error("no provider available", zap.Error(err))
			return nil, err
		}

		model := r.modelFor(provider)
		start := r.opts.now()
		completion, err := r.client.Complete(ctx, provider, req.ChatRequest(model))
		elapsed := r.opts.now().Sub(start).Seconds()

		if err == nil {
			r.registry.RecordSuccess(provider.Key, r.opts.now())
			r.opts.metrics.RecordSuccess(provider.Key, model, elapsed)
			return &providers.Response{
				Provider:   provider.Name,
				Model:      model,
				Content:    completion.Content,
				TokensUsed: completion.TotalTokens,
				Cost:       EstimateCost(provider.Name, model, completion.TotalTokens),
			}, nil
		}

		// A cancelled caller is not the provider's fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		class := Classify(err)
		state, recErr := r.registry.RecordFailure(provider.Key, failureMessage(class, err), r.config.ErrorThreshold)
		if recErr == nil {
			r.opts.metrics.UpdateHealth(provider.Key, state.Available, state.ErrorCount)
		}
		r.opts.metrics.RecordFailure(provider.Key, model, class, elapsed)

		r.logger.Warn("provider request failed",
			zap.String("provider", provider.Key),
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.String("class", class.String()),
			zap.Int("error_count", state.ErrorCount),
			zap.Error(err))

		if recErr == nil && !state.Available {
			r.logger.Warn("provider marked unavailable",
				zap.String("provider", provider.Key),
				zap.Int("error_count", state.ErrorCount))
		}

		if class.SwitchesProvider() {
			r.switchFrom(provider.Key)
			continue
		}

		if attempt < r.config.MaxAttempts {
			delay := time.Duration(attempt) * r.config.BaseDelay
			if err := r.opts.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	exhausted := &AttemptsExhaustedError{Attempts: r.config.MaxAttempts, Last: lastErr}
	r.logger.Error("provider attempts exhausted", zap.Error(exhausted))
	return nil, exhausted
}

// ResetAll clears every provider's health state
func (r *Router) ResetAll(reason string) {
	r.registry.ResetAll()
	r.opts.metrics.RecordReset(reason)
	r.publishHealth()
	r.logger.Info("provider health reset", zap.String("reason", reason))
}

func (r *Router) publishHealth() {
	if r.opts.metrics == nil {
		return
	}
	for key, st := range r.registry.Status() {
		r.opts.metrics.UpdateHealth(key, st.IsAvailable, st.ErrorCount)
	}
}

// IsNoProviderAvailable reports whether err means no provider could be selected
func IsNoProviderAvailable(err error) bool {
	return errors.Is(err, ErrNoProviderAvailable)
}
