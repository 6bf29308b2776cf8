// Package handler provides HTTP handlers for the GreenRoute API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/greenroute/greenroute/internal/api/response"
	"github.com/greenroute/greenroute/internal/provider/resilience"
)

// Pinger verifies connectivity to the spatial store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, db Pinger, registry *resilience.Registry) *OpsHandler {
	if registry == nil {
		registry = resilience.GlobalRegistry
	}
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"time":       time.Now().Format(time.RFC3339),
		"version":    h.version,
		"build_time": h.buildTime,
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			response.ServiceUnavailable(w, r, "spatial store unreachable")
			return
		}
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// SystemStatus handles GET /v1/ops/status - provider circuit status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := []map[string]interface{}{}
	for _, health := range h.registry.GetAllHealth() {
		providers = append(providers, map[string]interface{}{
			"provider":      health.Name,
			"healthy":       health.IsHealthy(),
			"circuit_state": health.CircuitState.String(),
		})
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"time":      time.Now().Format(time.RFC3339),
		"providers": providers,
	})
}
