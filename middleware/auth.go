package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/account"
	"github.com/gsequeira/vigiaweb/server/model"
	"github.com/gsequeira/vigiaweb/server/session"
)

const (
	// SessionKey holds the validated *model.Session in the Gin context.
	SessionKey = "session"
	// ClientKey holds the loaded *model.Client, when the session is
	// tied to an account.
	ClientKey = "client"

	// SessionCookie is the cookie carrying the opaque session token.
	SessionCookie = "session_token"
	// SessionIDCookie carries the numeric session ID; informational,
	// the token alone authenticates.
	SessionIDCookie = "session_id"
)

// TokenFromRequest extracts the session token from the Authorization
// header (Bearer) or the session cookie, in that order.
func TokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if tok, err := c.Cookie(SessionCookie); err == nil {
		return tok
	}
	return ""
}

// SessionAuth validates the presented session token against the
// registry and stores the session (and its client, when present) in
// the request context. Requests without a valid session are rejected.
func SessionAuth(sessions *session.Service, accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing token"})
			return
		}

		sess, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrInvalid) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired session"})
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
			}
			return
		}
		c.Set(SessionKey, sess)

		if sess.ClientID != nil {
			client, err := accounts.Get(c.Request.Context(), *sess.ClientID)
			if err != nil || !client.Active {
				// Account removed or deactivated after the session was
				// issued; the grant dies with it.
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired session"})
				return
			}
			c.Set(ClientKey, client)
		}
		c.Next()
	}
}

// RequireLevel rejects requests whose authenticated client does not
// have the given access level. Anonymous sessions never pass.
func RequireLevel(level string) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := GetClient(c)
		if client == nil || client.AccessLevel != level {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "acesso negado"})
			return
		}
		c.Next()
	}
}

// GetSession retrieves the validated session from the Gin context.
func GetSession(c *gin.Context) *model.Session {
	if v, exists := c.Get(SessionKey); exists {
		return v.(*model.Session)
	}
	return nil
}

// GetClient retrieves the authenticated client from the Gin context,
// or nil for anonymous sessions.
func GetClient(c *gin.Context) *model.Client {
	if v, exists := c.Get(ClientKey); exists {
		return v.(*model.Client)
	}
	return nil
}
