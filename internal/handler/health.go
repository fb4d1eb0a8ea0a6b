package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maxviazov/registry-api/internal/tasks"
)

const readyTimeout = 2 * time.Second

// Pinger is the minimal contract I need from a repository to check readiness.
// I keep it local to the handler package to avoid coupling and simplify tests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WorkerStats reports the blocking pool counters shown by readiness. Optional.
type WorkerStats interface {
	Stats() tasks.Stats
}

// HealthHandler exposes liveness and readiness endpoints.
type HealthHandler struct {
	repo  Pinger
	stats WorkerStats
}

func NewHealthHandler(repo Pinger, stats WorkerStats) *HealthHandler {
	return &HealthHandler{repo: repo, stats: stats}
}

// Liveness responds OK if the process is up; it doesn't check dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness pings the database with a short deadline. The ping error stays in the
// request log; the body only says the service is unavailable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	body := gin.H{"status": "ready"}
	if h.stats != nil {
		body["workers"] = h.stats.Stats()
	}
	c.JSON(http.StatusOK, body)
}
