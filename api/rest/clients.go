package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/account"
)

// ClientsHandler exposes admin CRUD over client accounts.
type ClientsHandler struct {
	accounts *account.Service
}

// NewClientsHandler creates a new ClientsHandler.
func NewClientsHandler(accounts *account.Service) *ClientsHandler {
	return &ClientsHandler{accounts: accounts}
}

// List handles GET /api/admin/clientes.
// Query params: busca, ativo, page, per_page.
func (h *ClientsHandler) List(c *gin.Context) {
	q := account.ListQuery{
		Search: c.Query("busca"),
	}
	if v := c.Query("ativo"); v != "" {
		active := v == "true" || v == "1"
		q.Active = &active
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	res, err := h.accounts.List(c.Request.Context(), q)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"clientes":     res.Clients,
		"total":        res.Total,
		"paginas":      res.Pages,
		"pagina_atual": res.Page,
	})
}

// Get handles GET /api/admin/clientes/:id.
func (h *ClientsHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	client, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			fail(c, http.StatusNotFound, "cliente não encontrado")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cliente": client})
}

type createClientRequest struct {
	Name        string                 `json:"nome" binding:"required,min=2,max=100"`
	Email       string                 `json:"email" binding:"required,email"`
	Password    string                 `json:"senha" binding:"omitempty,min=4,max=128"`
	Phone       string                 `json:"telefone"`
	Company     string                 `json:"empresa"`
	Role        string                 `json:"cargo"`
	City        string                 `json:"cidade"`
	State       string                 `json:"estado"`
	Country     string                 `json:"pais"`
	AccessLevel string                 `json:"nivel_acesso" binding:"omitempty,oneof=admin moderador usuario"`
	Notes       string                 `json:"observacoes"`
	Extra       map[string]interface{} `json:"dados_extras"`
}

// Create handles POST /api/admin/clientes.
func (h *ClientsHandler) Create(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "dados inválidos")
		return
	}

	client, err := h.accounts.Create(c.Request.Context(), account.CreateInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		Company:     req.Company,
		Role:        req.Role,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
		AccessLevel: req.AccessLevel,
		Notes:       req.Notes,
		Extra:       req.Extra,
	}, c.ClientIP())
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			fail(c, http.StatusConflict, "email já cadastrado")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "cliente": client})
}

type updateClientRequest struct {
	Name        *string                `json:"nome"`
	Phone       *string                `json:"telefone"`
	Company     *string                `json:"empresa"`
	Role        *string                `json:"cargo"`
	City        *string                `json:"cidade"`
	State       *string                `json:"estado"`
	Country     *string                `json:"pais"`
	AccessLevel *string                `json:"nivel_acesso" binding:"omitempty,oneof=admin moderador usuario"`
	Notes       *string                `json:"observacoes"`
	Active      *bool                  `json:"ativo"`
	Password    *string                `json:"senha"`
	Extra       map[string]interface{} `json:"dados_extras"`
}

// Update handles PUT /api/admin/clientes/:id. Absent fields are left
// untouched.
func (h *ClientsHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "dados inválidos")
		return
	}

	client, err := h.accounts.Update(c.Request.Context(), id, account.UpdateInput{
		Name:        req.Name,
		Phone:       req.Phone,
		Company:     req.Company,
		Role:        req.Role,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
		AccessLevel: req.AccessLevel,
		Notes:       req.Notes,
		Active:      req.Active,
		Password:    req.Password,
		Extra:       req.Extra,
	}, c.ClientIP())
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			fail(c, http.StatusNotFound, "cliente não encontrado")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cliente": client})
}

// Delete handles DELETE /api/admin/clientes/:id. Default is a soft
// delete (deactivation, sessions revoked); ?permanente=true removes the
// client and its owned rows for good.
func (h *ClientsHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var err error
	if c.Query("permanente") == "true" {
		err = h.accounts.Delete(c.Request.Context(), id, c.ClientIP())
	} else {
		err = h.accounts.Deactivate(c.Request.Context(), id, c.ClientIP())
	}
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			fail(c, http.StatusNotFound, "cliente não encontrado")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
