package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketchat/backend/internal/identity"
)

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// ListMessages returns one page of a room's messages, oldest to newest.
// Cursor: ?after_seq=<n>&limit=<m>.
func (h *Handler) ListMessages(c *gin.Context) {
	ident := identity.FromContext(c)
	roomID := c.Param("id")

	afterSeq, err := strconv.ParseInt(c.DefaultQuery("after_seq", "0"), 10, 64)
	if err != nil || afterSeq < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after_seq"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	messages, err := h.Router.ListMessages(roomID, ident.UserID, afterSeq, limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage appends a message to the room and fans it out to every live
// subscriber. An Idempotency-Key header makes retries safe: the original
// message is returned instead of a duplicate.
func (h *Handler) SendMessage(c *gin.Context) {
	ident := identity.FromContext(c)
	roomID := c.Param("id")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Router.Send(roomID, ident.UserID, req.Body, c.GetHeader("Idempotency-Key"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead marks everything the other participant has sent so far as read.
func (h *Handler) MarkRead(c *gin.Context) {
	ident := identity.FromContext(c)
	roomID := c.Param("id")

	updated, err := h.Router.MarkRead(roomID, ident.UserID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Typing forwards a typing signal. Always 204: typing is best-effort and
// never surfaces an error to the composing client.
func (h *Handler) Typing(c *gin.Context) {
	ident := identity.FromContext(c)
	h.Presence.SignalTyping(c.Param("id"), ident.UserID, ident.DisplayName)
	c.Status(http.StatusNoContent)
}
