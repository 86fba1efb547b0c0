package models

import (
	"sort"
	"strings"
	"time"
)

// Room represents a 1-on-1 conversation between a buyer and a seller,
// optionally scoped to a single listing. Admin conversations carry no listing.
type Room struct {
	// ID is the unique identifier for the room (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// DedupKey is the canonical, order-independent key derived from the
	// participant pair and the listing. At most one room ever exists per key.
	DedupKey string `gorm:"uniqueIndex;not null" json:"-"`
	// UserAID and UserBID hold the participant pair in canonical order
	// (lexicographically smaller id first).
	UserAID string `gorm:"type:text;not null;index" json:"user_a_id"`
	UserBID string `gorm:"type:text;not null;index" json:"user_b_id"`
	// ListingID references the listing this conversation is about, if any.
	ListingID *string `gorm:"index" json:"listing_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// LastMessageSeq is the sequence number of the newest message in the room.
	// It doubles as the room's sequence counter: the next message gets seq+1.
	LastMessageSeq int64 `gorm:"not null;default:0" json:"last_message_seq"`
	// LastMessageAt orders the conversation list (most recent activity first).
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
}

// RoomKey builds the canonical dedup key for a participant pair and an
// optional listing. The pair is sorted so that either participant order
// yields the same key.
func RoomKey(userA, userB string, listingID *string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	listing := ""
	if listingID != nil {
		listing = *listingID
	}
	return strings.Join([]string{pair[0], pair[1], listing}, ":")
}

// NewRoom builds a room for the given pair, storing participants in
// canonical order and copying the listing reference.
func NewRoom(id, userA, userB string, listingID *string) *Room {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return &Room{
		ID:        id,
		DedupKey:  RoomKey(userA, userB, listingID),
		UserAID:   pair[0],
		UserBID:   pair[1],
		ListingID: listingID,
	}
}

// HasParticipant reports whether userID is one of the room's two participants.
func (r *Room) HasParticipant(userID string) bool {
	return userID == r.UserAID || userID == r.UserBID
}

// OtherParticipant returns the participant opposite to userID.
// It returns an empty string if userID is not in the room.
func (r *Room) OtherParticipant(userID string) string {
	switch userID {
	case r.UserAID:
		return r.UserBID
	case r.UserBID:
		return r.UserAID
	}
	return ""
}
