package handlers

import (
	"net/http"

	"notebook-api/internal/cache"

	"github.com/gin-gonic/gin"
)

// CacheStatsHandler exposes the counters of every cache namespace for
// operational inspection.
type CacheStatsHandler struct {
	Providers map[string]cache.StatsProvider
}

// GetStats handles GET /api/cache/stats
func (h *CacheStatsHandler) GetStats(c *gin.Context) {
	stats := make(map[string]cache.Stats, len(h.Providers))
	for name, p := range h.Providers {
		stats[name] = p.Stats()
	}
	c.JSON(http.StatusOK, gin.H{"caches": stats})
}
