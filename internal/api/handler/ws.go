package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/config"
	"marketchat/backend/internal/identity"
	"marketchat/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and registers it with the hub.
// WSMiddleware has already verified the identity at this point.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	ident := identity.FromContext(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := &chathub.WebSocketClient{
		ConnID:      uuid.New().String(),
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		Conn:        conn,
		Hub:         h.Hub,
		Router:      h.Router,
		Presence:    h.Presence,
		Send:        make(chan models.Event, config.SendBufferSize),
	}

	h.Hub.RegisterCh <- client

	// Correct any unread drift against the store before events start flowing.
	if err := h.Unread.Reconcile(h.Storage, ident.UserID); err != nil {
		log.Printf("WARNING: Unread reconciliation failed for user %s: %v", ident.UserID, err)
	}

	client.Run()
}
