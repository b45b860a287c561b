package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/services/providers"
	"github.com/yamanotatsu/task-master-api/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// DatabaseChecker verifies database connectivity
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db       DatabaseChecker
	registry *providers.Registry
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when usage
// persistence is disabled.
func NewHealthHandler(db DatabaseChecker, registry *providers.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		registry: registry,
		logger:   logger,
	}
}

// HandleHealth handles GET /healthz.
// Basic health check, always returns 200 if the service is running.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz.
// Validates that the usage store is reachable and at least one provider
// adapter is registered.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["database"] = "disabled"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if len(h.registry.List()) == 0 {
		checks["providers"] = "none_registered"
		allHealthy = false
	} else {
		checks["providers"] = "registered"
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
