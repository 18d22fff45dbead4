package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/device"
	"github.com/gsequeira/vigiaweb/server/ipident"
)

// DevicesHandler serves the agent registration/heartbeat endpoints and
// the admin device listing.
type DevicesHandler struct {
	devices *device.Service
}

// NewDevicesHandler creates a new DevicesHandler.
func NewDevicesHandler(devices *device.Service) *DevicesHandler {
	return &DevicesHandler{devices: devices}
}

type registerDeviceRequest struct {
	ClientID *int64 `json:"cliente_id"`
	device.RegisterInput
}

// Register handles POST /api/agent/dispositivos. Re-registering a known
// device (same MAC or hostname) refreshes it instead of duplicating.
func (h *DevicesHandler) Register(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "dados inválidos")
		return
	}
	if req.Hostname == "" && req.MACAddress == "" {
		fail(c, http.StatusBadRequest, "hostname ou mac_address é obrigatório")
		return
	}

	publicIP := ipident.NormalizeIP(c.ClientIP())
	dev, created, err := h.devices.Register(c.Request.Context(), req.RegisterInput, req.ClientID, publicIP)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "dispositivo": dev, "novo": created})
}

// Heartbeat handles POST /api/agent/dispositivos/:id/heartbeat.
func (h *DevicesHandler) Heartbeat(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.devices.Heartbeat(c.Request.Context(), id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			fail(c, http.StatusNotFound, "dispositivo não encontrado")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List handles GET /api/admin/dispositivos.
// Query params: cliente_id, ativo, page, per_page.
func (h *DevicesHandler) List(c *gin.Context) {
	q := device.ListQuery{}
	q.ClientID, _ = strconv.ParseInt(c.Query("cliente_id"), 10, 64)
	if v := c.Query("ativo"); v != "" {
		active := v == "true" || v == "1"
		q.Active = &active
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "50"))

	res, err := h.devices.List(c.Request.Context(), q)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"dispositivos": res.Devices,
		"total":        res.Total,
		"paginas":      res.Pages,
		"pagina_atual": res.Page,
	})
}
