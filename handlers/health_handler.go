package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/upb/bolt-saas/backend/services/providers"
	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// Version is reported by the status endpoint
const Version = "0.1.0"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse represents the application status response
type StatusResponse struct {
	Version      string                              `json:"version"`
	Environment  string                              `json:"environment"`
	RouterPolicy string                              `json:"routerPolicy"`
	Providers    map[string]providers.ProviderStatus `json:"providers"`
}

// StatusSource exposes the router's provider snapshot
type StatusSource interface {
	PolicyName() string
	Status() map[string]providers.ProviderStatus
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db          *sql.DB
	router      StatusSource
	environment string
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. router may be nil.
func NewHealthHandler(db *sql.DB, router StatusSource, environment string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:          db,
		router:      router,
		environment: environment,
		logger:      logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// The database must answer; providers without credentials are reported but
// do not fail readiness.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["database"] = "not_initialized"
		allHealthy = false
	} else if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.router != nil {
		checks["providers"] = "none_configured"
		for _, s := range h.router.Status() {
			if s.HasAPIKey {
				checks["providers"] = "configured"
				break
			}
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Version:     Version,
		Environment: h.environment,
		Providers:   map[string]providers.ProviderStatus{},
	}
	if h.router != nil {
		response.RouterPolicy = h.router.PolicyName()
		response.Providers = h.router.Status()
	}

	_ = utils.WriteOK(w, response)
}

// checkDatabase pings and runs a trivial query
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
