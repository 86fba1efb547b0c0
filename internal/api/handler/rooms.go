package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketchat/backend/internal/identity"
)

type createRoomRequest struct {
	OtherUserID string  `json:"other_user_id" binding:"required,uuid4"`
	ListingID   *string `json:"listing_id" binding:"omitempty,max=64"`
}

// CreateRoom resolves or lazily creates the conversation between the caller
// and another user, optionally scoped to a listing. Requesting the same pair
// in either order always yields the same room.
func (h *Handler) CreateRoom(c *gin.Context) {
	ident := identity.FromContext(c)

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.Router.GetOrCreateRoom(ident.UserID, req.OtherUserID, req.ListingID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListRooms returns the caller's conversation list, most recent activity
// first, with last message and unread marker per room.
func (h *Handler) ListRooms(c *gin.Context) {
	ident := identity.FromContext(c)

	summaries, err := h.Router.ListRooms(ident.UserID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

// UnreadSummary returns the caller's unread view: per-room booleans plus the
// total count of unread conversations.
func (h *Handler) UnreadSummary(c *gin.Context) {
	ident := identity.FromContext(c)
	if err := h.Unread.EnsurePrimed(h.Storage, ident.UserID); err != nil {
		log.Printf("WARNING: Unread priming failed for user %s: %v", ident.UserID, err)
	}
	c.JSON(http.StatusOK, h.Unread.Summary(ident.UserID))
}
