package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/bolt-saas/backend/app"
	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/utils"
)

// OperatorRoles may force a provider or reset router health
var OperatorRoles = []string{"owner", "admin"}

// defaultRequestTimeout applies when the server has no write timeout configured
const defaultRequestTimeout = 120 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	timeout := defaultRequestTimeout
	if deps.Config != nil && deps.Config.Server.WriteTimeout > 0 {
		timeout = deps.Config.Server.WriteTimeout
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Cookie", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := deps.Handlers
	sessions := deps.Sessions

	// Health check endpoints
	r.Get("/healthz", h.Health.HandleHealth)
	r.Get("/readyz", h.Health.HandleReadiness)

	if deps.MetricsRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		}))
	}

	r.Get("/api/v1/status", h.Health.HandleStatus)

	// Provider router. Completions are open to anonymous callers; a valid
	// session only attributes usage. Pinning and resetting the shared
	// router is limited to workspace operators.
	r.Route("/api/auto-llm", func(r chi.Router) {
		r.Get("/", h.Completion.HandleStatus)
		r.With(sessions.OptionalSession).Post("/", h.Completion.HandleComplete)

		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireSession)
			r.Use(sessions.RequireRole(OperatorRoles...))

			r.Post("/force", h.Completion.HandleForce)
			r.Post("/reset", h.Completion.HandleReset)
		})
	})

	r.With(sessions.OptionalSession).Get("/api/saas/session", h.Session.HandleSession)

	// Session-protected persistence endpoints
	if h.HasStore() {
		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireSession)

			r.Post("/api/projects/save", h.Projects.HandleSave)
			r.Get("/api/projects/load", h.Projects.HandleLoad)

			r.Post("/api/chat/save", h.Chat.HandleSave)
			r.Get("/api/chat/history", h.Chat.HandleList)
			r.Get("/api/chat/history/{id}", h.Chat.HandleGet)
			r.Delete("/api/chat/history/{id}", h.Chat.HandleDelete)
			r.Get("/api/chat/stats", h.Chat.HandleStats)

			r.Post("/api/usage/log", h.Usage.HandleLog)
			r.Get("/api/usage/stats", h.Usage.HandleStats)
			r.Get("/api/usage", h.Usage.HandleList)
		})
	}

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found", nil)
	})

	return r
}
