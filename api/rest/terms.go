package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/audit"
	"github.com/gsequeira/vigiaweb/server/config"
	"github.com/gsequeira/vigiaweb/server/ipident"
	"github.com/gsequeira/vigiaweb/server/session"
)

// TermsHandler implements the anonymous-visitor flow: accepting the
// terms of use assigns (or recalls) the caller's IP-keyed identity and
// opens an anonymous session.
type TermsHandler struct {
	idents   *ipident.Service
	sessions *session.Service
	audit    *audit.Service
	cfg      config.SessionConfig
}

// NewTermsHandler creates a new TermsHandler.
func NewTermsHandler(idents *ipident.Service, sessions *session.Service, auditSvc *audit.Service, cfg config.SessionConfig) *TermsHandler {
	return &TermsHandler{idents: idents, sessions: sessions, audit: auditSvc, cfg: cfg}
}

type acceptTermsRequest struct {
	AcceptTerms bool                   `json:"accept_terms"`
	SystemInfo  map[string]interface{} `json:"system_info"`
}

// AcceptTerms handles POST /api/aceitar-termos.
func (h *TermsHandler) AcceptTerms(c *gin.Context) {
	var req acceptTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "corpo inválido")
		return
	}
	if !req.AcceptTerms {
		fail(c, http.StatusBadRequest, "é necessário aceitar os termos")
		return
	}

	ip := c.ClientIP()
	userAgent := c.Request.UserAgent()
	ident, isNew, err := h.idents.GetOrCreate(c.Request.Context(), ip, userAgent, req.SystemInfo)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), nil, ip, userAgent, h.cfg.TTL)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}

	action := "usuario_retornando"
	if isNew {
		action = "terms_accepted"
	}
	h.audit.Record(audit.Entry{
		Action:      action,
		Description: "Termos aceitos por " + ident.Username,
		IP:          ip,
		UserAgent:   userAgent,
	})

	setSessionCookies(c, h.cfg, sess.ID, sess.Token, int(h.cfg.TTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"username":     ident.Username,
		"is_new_user":  isNew,
		"total_visits": ident.Visits,
	})
}

// UserInfo handles GET /api/usuario-info: the identity bound to the
// caller's address, without counting a visit.
func (h *TermsHandler) UserInfo(c *gin.Context) {
	ident, err := h.idents.Get(c.Request.Context(), c.ClientIP())
	if err != nil {
		if errors.Is(err, ipident.ErrNotFound) {
			fail(c, http.StatusNotFound, "usuário não identificado")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"username":     ident.Username,
		"total_visits": ident.Visits,
		"first_visit":  ident.FirstSeen,
		"last_seen":    ident.LastSeen,
	})
}

// MyData handles GET /api/meus-dados: everything stored about the
// caller's IP identity.
func (h *TermsHandler) MyData(c *gin.Context) {
	ident, err := h.idents.Get(c.Request.Context(), c.ClientIP())
	if err != nil {
		if errors.Is(err, ipident.ErrNotFound) {
			fail(c, http.StatusNotFound, "usuário não identificado")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "usuario": ident})
}
