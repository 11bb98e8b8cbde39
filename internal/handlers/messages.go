package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatroom-service/internal/models"
)

// Historian serves the full room history in persistence order.
type Historian interface {
	History(ctx context.Context) ([]models.Message, error)
}

// MessageHandler serves history hydration for newly joining clients.
type MessageHandler struct {
	pipe Historian
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(pipe Historian) *MessageHandler {
	return &MessageHandler{pipe: pipe}
}

// ListMessages handles GET /api/messages. Messages come back ordered by
// sequence id ascending, matching the order live broadcasts were observed.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	msgs, err := h.pipe.History(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
