package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/account"
	"github.com/gsequeira/vigiaweb/server/cache"
	"github.com/gsequeira/vigiaweb/server/chat"
	"github.com/gsequeira/vigiaweb/server/ipident"
	mw "github.com/gsequeira/vigiaweb/server/middleware"
	"github.com/gsequeira/vigiaweb/server/model"
	"github.com/gsequeira/vigiaweb/server/session"
	"go.uber.org/zap"
)

// Handler streams chat rooms over server-sent events.
type Handler struct {
	pubsub   cache.PubSub
	chats    *chat.Service
	sessions *session.Service
	accounts *account.Service
	idents   *ipident.Service
	logger   *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(ps cache.PubSub, chats *chat.Service, sessions *session.Service,
	accounts *account.Service, idents *ipident.Service, logger *zap.Logger) *Handler {
	return &Handler{
		pubsub:   ps,
		chats:    chats,
		sessions: sessions,
		accounts: accounts,
		idents:   idents,
		logger:   logger,
	}
}

// Stream handles GET /api/chat/stream?sala=<room>&token=<token>.
// EventSource cannot set headers, so the token may also come as a query
// parameter; cookies work as usual.
func (h *Handler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = mw.TokenFromRequest(c)
	}
	sess, err := h.sessions.Validate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "sessão inválida ou expirada"})
		return
	}

	room := c.DefaultQuery("sala", "geral")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, chat.RoomChannel(room))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("room", room), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// Track room occupancy while the stream is open. An unresolvable
	// name (e.g. session created before the identity) just skips it.
	if name := h.viewerName(c, sess); name != "" {
		h.chats.Join(c.Request.Context(), room, name)
		defer h.chats.Leave(context.Background(), room, name)
	}

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"sala\":%q}\n\n", room)
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: mensagem\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// viewerName resolves the display name for presence tracking: the
// account name for client sessions, the IP identity otherwise.
func (h *Handler) viewerName(c *gin.Context, sess *model.Session) string {
	ctx := c.Request.Context()
	if sess.ClientID != nil {
		if client, err := h.accounts.Get(ctx, *sess.ClientID); err == nil {
			return client.Name
		}
		return ""
	}
	if ident, err := h.idents.Get(ctx, c.ClientIP()); err == nil {
		return ident.Username
	}
	return ""
}
