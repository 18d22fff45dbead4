package rest

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/ipident"
	"github.com/gsequeira/vigiaweb/server/netlog"
)

// MonitorHandler serves the monitoring views that don't fit a single
// domain service: visitor identities and CSV exports.
type MonitorHandler struct {
	idents *ipident.Service
	netlog *netlog.Service
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(idents *ipident.Service, nl *netlog.Service) *MonitorHandler {
	return &MonitorHandler{idents: idents, netlog: nl}
}

// Visitors handles GET /api/admin/visitantes: identities most recently
// seen first.
func (h *MonitorHandler) Visitors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	idents, err := h.idents.List(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "visitantes": idents, "total": len(idents)})
}

// ExportConnections handles GET /api/admin/export/conexoes.csv. Accepts
// the same filters as the connection listing.
func (h *MonitorHandler) ExportConnections(c *gin.Context) {
	q := netlog.ListQuery{PerPage: 500}
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

	res, err := h.netlog.List(c.Request.Context(), q)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="conexoes.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"id", "cliente_id", "dispositivo_id", "ip_origem", "porta_origem",
		"ip_destino", "porta_destino", "protocolo", "status", "processo",
		"bytes_enviados", "bytes_recebidos", "data_hora",
	})
	for _, conn := range res.Connections {
		row := []string{
			strconv.FormatInt(conn.ID, 10),
			formatOptID(conn.ClientID),
			formatOptID(conn.DeviceID),
			conn.SrcIP,
			strconv.Itoa(conn.SrcPort),
			conn.DstIP,
			strconv.Itoa(conn.DstPort),
			conn.Protocol,
			conn.Status,
			conn.Process,
			strconv.FormatInt(conn.BytesSent, 10),
			strconv.FormatInt(conn.BytesRecv, 10),
			conn.SeenAt.Format(time.RFC3339),
		}
		_ = w.Write(row)
	}
	w.Flush()
}

func formatOptID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
