package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/account"
	"github.com/gsequeira/vigiaweb/server/audit"
	"github.com/gsequeira/vigiaweb/server/config"
	mw "github.com/gsequeira/vigiaweb/server/middleware"
	"github.com/gsequeira/vigiaweb/server/session"
)

// AuthHandler handles password login, logout and session validation.
type AuthHandler struct {
	accounts *account.Service
	sessions *session.Service
	audit    *audit.Service
	cfg      config.SessionConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *account.Service, sessions *session.Service, auditSvc *audit.Service, cfg config.SessionConfig) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions, audit: auditSvc, cfg: cfg}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"senha" binding:"required,min=4,max=128"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email e senha são obrigatórios")
		return
	}

	ip := c.ClientIP()
	client, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password, ip)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, "credenciais inválidas")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), &client.ID, ip, c.Request.UserAgent(), h.cfg.TTL)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}

	setSessionCookies(c, h.cfg, sess.ID, sess.Token, int(h.cfg.TTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   sess.Token,
		"cliente": client,
	})
}

// Logout handles POST /api/auth/logout. Revoking an unknown token still
// succeeds; logout is idempotent from the caller's side.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.TokenFromRequest(c)
	if token == "" {
		fail(c, http.StatusBadRequest, "token ausente")
		return
	}

	existed, err := h.sessions.Revoke(c.Request.Context(), token)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	if existed {
		h.audit.Record(audit.Entry{
			Action:      "logout",
			Description: "Sessão encerrada",
			IP:          c.ClientIP(),
		})
	}

	clearSessionCookies(c, h.cfg)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Validate handles GET /api/auth/validar. An invalid or expired token is
// not an error condition; the body reports valido=false.
func (h *AuthHandler) Validate(c *gin.Context) {
	token := mw.TokenFromRequest(c)
	sess, err := h.sessions.Validate(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrInvalid) {
			c.JSON(http.StatusOK, gin.H{"success": true, "valido": false})
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}

	resp := gin.H{"success": true, "valido": true}
	if sess.ClientID != nil {
		if client, err := h.accounts.Get(c.Request.Context(), *sess.ClientID); err == nil {
			resp["cliente"] = client
		}
	}
	c.JSON(http.StatusOK, resp)
}

// setSessionCookies writes the session_id/session_token cookie pair.
// HttpOnly always; Secure and SameSite come from config.
func setSessionCookies(c *gin.Context, cfg config.SessionConfig, id int64, token string, maxAge int) {
	c.SetSameSite(sameSite(cfg.CookieSameSite))
	c.SetCookie(mw.SessionIDCookie, formatID(id), maxAge, "/", "", cfg.CookieSecure, true)
	c.SetCookie(mw.SessionCookie, token, maxAge, "/", "", cfg.CookieSecure, true)
}

func clearSessionCookies(c *gin.Context, cfg config.SessionConfig) {
	c.SetSameSite(sameSite(cfg.CookieSameSite))
	c.SetCookie(mw.SessionIDCookie, "", -1, "/", "", cfg.CookieSecure, true)
	c.SetCookie(mw.SessionCookie, "", -1, "/", "", cfg.CookieSecure, true)
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
