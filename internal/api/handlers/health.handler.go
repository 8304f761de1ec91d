package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
	"github.com/platformbuilds/dashboard-core/pkg/store"
)

const serviceName = "dashboard-core"

type HealthHandler struct {
	store  store.RecordStore
	logger logger.Logger
}

func NewHealthHandler(s store.RecordStore, logger logger.Logger) *HealthHandler {
	return &HealthHandler{store: s, logger: logger}
}

// GET /health - liveness, no dependencies checked
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   monitoring.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - readiness depends on the record store answering
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	check := gin.H{"status": "healthy", "backend": h.store.Backend()}
	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn("Record store health check failed", "backend", h.store.Backend(), "error", err)
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		check["status"] = "unhealthy"
		check["error"] = err.Error()
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   monitoring.Version,
		"checks":    gin.H{"store": check},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
