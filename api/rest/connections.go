package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/netlog"
)

// ConnectionsHandler ingests agent-reported connections and serves the
// admin listing.
type ConnectionsHandler struct {
	netlog *netlog.Service
}

// NewConnectionsHandler creates a new ConnectionsHandler.
func NewConnectionsHandler(nl *netlog.Service) *ConnectionsHandler {
	return &ConnectionsHandler{netlog: nl}
}

type recordConnectionsRequest struct {
	DeviceID    *int64                   `json:"dispositivo_id"`
	ClientID    *int64                   `json:"cliente_id"`
	Connections []netlog.ConnectionInput `json:"conexoes" binding:"required"`
}

// Record handles POST /api/agent/conexoes: bulk ingest of one report.
func (h *ConnectionsHandler) Record(c *gin.Context) {
	var req recordConnectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "dados inválidos")
		return
	}

	n, err := h.netlog.RecordBatch(c.Request.Context(), req.Connections, req.DeviceID, req.ClientID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "registradas": n})
}

// List handles GET /api/admin/conexoes.
// Query params: dispositivo_id, cliente_id, de, ate (RFC 3339), page, per_page.
func (h *ConnectionsHandler) List(c *gin.Context) {
	q := netlog.ListQuery{}
	q.DeviceID, _ = strconv.ParseInt(c.Query("dispositivo_id"), 10, 64)
	q.ClientID, _ = strconv.ParseInt(c.Query("cliente_id"), 10, 64)
	if v := c.Query("de"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.From = &t
		}
	}
	if v := c.Query("ate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.To = &t
		}
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "100"))

	res, err := h.netlog.List(c.Request.Context(), q)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"conexoes":     res.Connections,
		"total":        res.Total,
		"paginas":      res.Pages,
		"pagina_atual": res.Page,
	})
}
