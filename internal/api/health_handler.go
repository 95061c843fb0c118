package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leobrain/crawler/internal/logger"
)

// DBPinger reports relational store liveness.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// StorageChecker reports object store liveness.
type StorageChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheckTimeout bounds the dependency probes of one health request.
const healthCheckTimeout = 5 * time.Second

// HealthHandler serves the service liveness route.
type HealthHandler struct {
	db      DBPinger
	storage StorageChecker
	log     logger.Interface
}

// NewHealthHandler creates a HealthHandler. Nil dependencies are skipped;
// the logger may be nil.
func NewHealthHandler(db DBPinger, storage StorageChecker, log logger.Interface) *HealthHandler {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &HealthHandler{db: db, storage: storage, log: log}
}

// Check reports overall service health. Any failing dependency degrades
// the response to 503.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Warn("Database health check failed", "error", err)
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.storage != nil {
		if err := h.storage.HealthCheck(ctx); err != nil {
			h.log.Warn("Storage health check failed", "error", err)
			checks["storage"] = err.Error()
			healthy = false
		} else {
			checks["storage"] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
}
