package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gsequeira/vigiaweb/server/chat"
	"github.com/gsequeira/vigiaweb/server/ipident"
	mw "github.com/gsequeira/vigiaweb/server/middleware"
)

// ChatHandler serves chat posting, history and moderation. The display
// name comes from the authenticated client when the session has one,
// otherwise from the caller's IP identity.
type ChatHandler struct {
	chat   *chat.Service
	idents *ipident.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatSvc *chat.Service, idents *ipident.Service) *ChatHandler {
	return &ChatHandler{chat: chatSvc, idents: idents}
}

type postMessageRequest struct {
	Room    string `json:"sala"`
	Content string `json:"mensagem" binding:"required"`
	Type    string `json:"tipo" binding:"omitempty,oneof=texto imagem arquivo sistema"`
}

// Post handles POST /api/chat/mensagens.
func (h *ChatHandler) Post(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "mensagem é obrigatória")
		return
	}

	var clientID *int64
	var username string
	if client := mw.GetClient(c); client != nil {
		clientID = &client.ID
		username = client.Name
	} else if ident, err := h.idents.Get(c.Request.Context(), c.ClientIP()); err == nil {
		username = ident.Username
	} else {
		fail(c, http.StatusForbidden, "aceite os termos antes de usar o chat")
		return
	}

	msg, err := h.chat.Post(c.Request.Context(), req.Room, username, req.Content, req.Type, clientID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, "mensagem vazia")
		case errors.Is(err, chat.ErrTooLong):
			fail(c, http.StatusBadRequest, "mensagem muito longa")
		default:
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "mensagem": msg})
}

// History handles GET /api/chat/mensagens.
// Query params: sala, limit, antes_de (RFC 3339). Oldest first.
func (h *ChatHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	var before *time.Time
	if v := c.Query("antes_de"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			before = &t
		}
	}

	msgs, err := h.chat.History(c.Request.Context(), c.Query("sala"), limit, before)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "mensagens": msgs})
}

// Presence handles GET /api/chat/presenca. Lists who is currently
// streaming the room.
func (h *ChatHandler) Presence(c *gin.Context) {
	room := c.DefaultQuery("sala", "geral")
	names, err := h.chat.Present(c.Request.Context(), room)
	if err != nil {
		fail(c, http.StatusInternalServerError, "erro interno")
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sala": room, "presentes": names})
}

// Delete handles DELETE /api/admin/chat/mensagens/:id (moderation).
func (h *ChatHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.chat.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			fail(c, http.StatusNotFound, "mensagem não encontrada")
		} else {
			fail(c, http.StatusInternalServerError, "erro interno")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
