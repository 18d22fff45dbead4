package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/audit"
)

// LogsHandler exposes the audit trail to admins.
type LogsHandler struct {
	audit *audit.Service
}

// NewLogsHandler creates a new LogsHandler.
func NewLogsHandler(auditSvc *audit.Service) *LogsHandler {
	return &LogsHandler{audit: auditSvc}
}

// List handles GET /api/admin/logs.
// Query params: cliente_id, acao, nivel, limit. Newest first, capped.
func (h *LogsHandler) List(c *gin.Context) {
	f := audit.Filter{
		Action: c.Query("acao"),
		Level:  c.Query("nivel"),
	}
	f.ClientID, _ = strconv.ParseInt(c.Query("cliente_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.audit.Query(c.Request.Context(), f, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": entries, "total": len(entries)})
}
