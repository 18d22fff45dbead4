package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/stats"
)

// StatsHandler serves the aggregate platform counters.
type StatsHandler struct {
	stats *stats.Service
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsSvc *stats.Service) *StatsHandler {
	return &StatsHandler{stats: statsSvc}
}

// Summary handles GET /api/admin/estatisticas.
func (h *StatsHandler) Summary(c *gin.Context) {
	s, err := h.stats.Summarize(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "estatisticas": s})
}
