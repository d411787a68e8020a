package handlers

import (
	"net/http"
	"time"

	"safeher/internal/services"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	sessions services.SessionService
	version  string
	started  time.Time
}

func NewHealthHandler(sessions services.SessionService, version string) *HealthHandler {
	return &HealthHandler{sessions: sessions, version: version, started: time.Now()}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"version":         h.version,
		"uptime_seconds":  int64(time.Since(h.started).Seconds()),
		"active_sessions": h.sessions.Count(),
	})
}
