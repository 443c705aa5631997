package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/upb/bolt-saas/backend/config"
	"github.com/upb/bolt-saas/backend/handlers"
	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/repositories"
	"github.com/upb/bolt-saas/backend/repositories/postgres"
	"github.com/upb/bolt-saas/backend/services/chat"
	"github.com/upb/bolt-saas/backend/services/completion"
	"github.com/upb/bolt-saas/backend/services/project"
	"github.com/upb/bolt-saas/backend/services/providers"
	"github.com/upb/bolt-saas/backend/services/providers/openai"
	"github.com/upb/bolt-saas/backend/services/routing"
	"github.com/upb/bolt-saas/backend/services/usage"
	"go.uber.org/zap"
)

// usageStopTimeout bounds how long Close waits for queued usage logs
const usageStopTimeout = 10 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repositories *repositories.Repositories
	TxManager    repositories.TransactionManager

	// Provider routing
	Providers       *providers.Registry
	Policy          routing.Policy
	MetricsRegistry *prometheus.Registry

	// Services
	Usage      *usage.Service
	Projects   *project.Service
	Chats      *chat.Service
	Completion *completion.Service

	// HTTP
	Sessions *middleware.SessionMiddleware
	Handlers Handlers

	scheduler *routing.ResetScheduler
	watcher   *providers.TableWatcher
}

// Handlers groups the HTTP handlers mounted by the router. Store-backed
// handlers are nil when no database is wired.
type Handlers struct {
	Health     *handlers.HealthHandler
	Completion *handlers.CompletionHandler
	Session    *handlers.SessionHandler
	Projects   *handlers.ProjectHandler
	Chat       *handlers.ChatHandler
	Usage      *handlers.UsageHandler
}

// HasStore reports whether persistence endpoints are available
func (h Handlers) HasStore() bool {
	return h.Projects != nil
}

// NewDependencies opens the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := factory.GetDB().HealthCheck(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(cfg, logger, factory)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires dependencies over an existing repository
// factory. A nil factory builds the routing stack only; persistence handlers
// are left unset and completions are not metered.
func NewDependenciesWithFactory(cfg *config.Config, logger *zap.Logger, factory *postgres.RepositoryFactory) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
	}

	if factory != nil {
		deps.initRepositories()
	}

	if err := deps.initRouting(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize provider routing: %w", err)
	}

	deps.initServices(cfg)

	if err := deps.initSessions(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize sessions: %w", err)
	}

	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("router_policy", deps.Policy.Name()),
		zap.Int("providers", deps.Providers.Len()),
		zap.Bool("store", factory != nil))
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.DB = d.RepoFactory.GetDB()
	d.Repositories = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initRouting builds the provider registry and the routing policy
func (d *Dependencies) initRouting(cfg *config.Config) error {
	defs := providers.DefaultDefinitions()
	if cfg.Providers.TableFile != "" {
		loaded, err := providers.LoadTable(cfg.Providers.TableFile)
		if err != nil {
			return err
		}
		defs = loaded
	}

	registry, err := providers.NewRegistry(providers.BuildStates(defs, cfg.Providers.APIKeys, cfg.Providers.BaseURLs)...)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}
	d.Providers = registry

	for _, key := range registry.Keys() {
		state, _ := registry.Get(key)
		d.Logger.Info("provider registered",
			zap.String("provider", key),
			zap.Int("priority", state.Priority),
			zap.Bool("has_api_key", state.HasAPIKey()))
	}
	if !cfg.Providers.HasAnyKey() {
		d.Logger.Warn("no LLM provider API keys configured")
	}

	var opts []routing.Option
	if cfg.Observability.MetricsEnabled {
		d.MetricsRegistry = prometheus.NewRegistry()
		d.MetricsRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, routing.WithMetrics(routing.NewMetrics(d.MetricsRegistry)))
	}

	client := openai.NewClient(cfg.Providers.Timeout)
	switch cfg.Router.Policy {
	case config.PolicyFallback:
		d.Policy = routing.NewFallbackPolicy(registry, client, nil, d.Logger, opts...)
	default:
		d.Policy = routing.NewRouter(registry, client, routing.Config{
			ErrorThreshold: cfg.Router.ErrorThreshold,
			MaxAttempts:    cfg.Router.MaxAttempts,
			BaseDelay:      cfg.Router.BaseDelay,
		}, d.Logger, opts...)
	}

	if cfg.Router.ResetSchedule != "" {
		if resetter, ok := d.Policy.(routing.Resetter); ok {
			d.scheduler = routing.NewResetScheduler(resetter, cfg.Router.ResetSchedule, d.Logger)
		} else {
			d.Logger.Warn("router reset schedule ignored, policy keeps no health state",
				zap.String("policy", d.Policy.Name()))
		}
	}

	if cfg.Providers.Watch && cfg.Providers.TableFile != "" {
		apiKeys, baseURLs := cfg.Providers.APIKeys, cfg.Providers.BaseURLs
		watcher, err := providers.NewTableWatcher(cfg.Providers.TableFile, 0, func(defs []providers.Definition) error {
			return registry.Replace(providers.BuildStates(defs, apiKeys, baseURLs))
		}, d.Logger)
		if err != nil {
			return err
		}
		d.watcher = watcher
	}

	return nil
}

// initServices creates the domain services
func (d *Dependencies) initServices(cfg *config.Config) {
	var recorder completion.UsageRecorder
	if d.Repositories != nil {
		d.Usage = usage.NewService(d.Repositories.UsageLogs, d.Logger, usage.Config{
			BufferSize:  cfg.Usage.BufferSize,
			WorkerCount: cfg.Usage.Workers,
		})
		d.Projects = project.NewService(d.Repositories.Projects, d.Repositories.ProjectFiles, d.TxManager, d.Logger)
		d.Chats = chat.NewService(d.Repositories.ChatHistory, d.Logger)
		recorder = d.Usage
	}

	d.Completion = completion.NewService(d.Policy, recorder, d.Logger)
}

// initSessions builds the session middleware. Without a secret every
// protected route answers 401.
func (d *Dependencies) initSessions(cfg *config.Config) error {
	if cfg.SaaS.SessionSecret == "" {
		d.Logger.Warn("SESSION_SECRET not set, session-protected endpoints disabled")
		d.Sessions = middleware.NewSessionMiddleware(nil, d.Logger)
		return nil
	}

	validator, err := middleware.NewSessionValidator(cfg.SaaS.SessionSecret)
	if err != nil {
		return err
	}
	d.Sessions = middleware.NewSessionMiddleware(validator, d.Logger)
	return nil
}

// initHandlers creates the HTTP handlers
func (d *Dependencies) initHandlers(cfg *config.Config) {
	var db *sql.DB
	if d.DB != nil {
		db = d.DB.DB
	}

	d.Handlers = Handlers{
		Health:     handlers.NewHealthHandler(db, d.Completion, cfg.Environment, d.Logger),
		Completion: handlers.NewCompletionHandler(d.Completion, d.Logger),
		Session:    handlers.NewSessionHandler(cfg.SaaS.Enabled, d.Logger),
	}

	if d.Repositories != nil {
		d.Handlers.Projects = handlers.NewProjectHandler(d.Projects, d.Logger)
		d.Handlers.Chat = handlers.NewChatHandler(d.Chats, d.Logger)
		d.Handlers.Usage = handlers.NewUsageHandler(d.Usage, d.Logger)
	}
}

// Start launches background workers: usage writers, the reset scheduler and
// the provider table watcher
func (d *Dependencies) Start(ctx context.Context) error {
	if d.Usage != nil {
		if err := d.Usage.Start(); err != nil {
			return fmt.Errorf("failed to start usage service: %w", err)
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reset scheduler: %w", err)
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start provider table watcher: %w", err)
		}
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop provider table watcher: %w", err))
		}
		d.watcher = nil
	}

	if d.scheduler != nil {
		d.scheduler.Stop()
	}

	if d.Usage != nil {
		timeout := usageStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Usage.Stop(timeout); err != nil && !errors.Is(err, usage.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to drain usage logs: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
