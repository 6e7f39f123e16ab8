package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	jobStore Pinger
}

// NewHealthHandler creates a new health handler. jobStore may be nil.
func NewHealthHandler(jobStore Pinger) *HealthHandler {
	return &HealthHandler{jobStore: jobStore}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	if h.jobStore != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.jobStore.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  "job storage unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
