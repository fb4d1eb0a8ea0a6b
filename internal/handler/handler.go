package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/service"
)

// Register mounts all public routes on the given engine.
// Accepts service layer dependencies for API endpoints.
// stats may be nil.
func Register(r *gin.Engine, repo Pinger, stats WorkerStats, keywordSvc service.KeywordService, limits pagination.Limits) {
	h := NewHealthHandler(repo, stats)

	// Health probes
	r.GET("/live", h.Liveness)
	r.GET("/ready", h.Readiness)

	api := r.Group(APIV1Prefix) // Versioning added via single source of truth
	{
		health := api.Group("/health")
		{
			health.GET("/live", h.Liveness)
			health.GET("/ready", h.Readiness)
		}
		NewKeywordHandler(keywordSvc, limits).Register(api)
	}
}
