package models

import "time"

// Message is a persisted chat message. Messages are append-only: once
// written, only the read flag ever changes, and only from false to true.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// RoomID is the room the message belongs to.
	RoomID string `gorm:"type:uuid;not null;uniqueIndex:idx_room_seq,priority:1;index:idx_room_unread" json:"room_id"`
	// Seq is the room-scoped sequence number, assigned at append time.
	// Seq starts at 1 and increases by exactly one per message within a room.
	Seq int64 `gorm:"not null;uniqueIndex:idx_room_seq,priority:2" json:"seq"`
	// SenderID is the participant who sent the message.
	SenderID string `gorm:"type:text;not null;index:idx_room_unread" json:"sender_id"`
	// Body is the trimmed message text.
	Body string `gorm:"type:text;not null" json:"body"`
	// ListingID is copied from the room at send time, for display.
	ListingID *string `json:"listing_id,omitempty"`

	// Read flips to true when the other participant marks the room read.
	Read   bool       `gorm:"not null;default:false;index:idx_room_unread" json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// ReadState is the per-(room,user) read watermark: "this user has read the
// room up to and including LastReadSeq". The watermark never moves backwards.
type ReadState struct {
	RoomID      string    `gorm:"type:uuid;primaryKey"`
	UserID      string    `gorm:"type:text;primaryKey"`
	LastReadSeq int64     `gorm:"not null;default:0"`
	LastReadAt  time.Time `gorm:"not null"`
}

// Idempotency records the outcome of a previously processed send, keyed by
// (sender, room, key). A retried send with the same key returns the original
// message instead of appending a duplicate.
type Idempotency struct {
	ID        string    `gorm:"type:text;primaryKey"`
	SenderID  string    `gorm:"type:text;not null;uniqueIndex:ux_sender_room_key,priority:1"`
	RoomID    string    `gorm:"type:uuid;not null;uniqueIndex:ux_sender_room_key,priority:2"`
	Key       string    `gorm:"type:text;not null;uniqueIndex:ux_sender_room_key,priority:3"`
	MessageID uint      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}
