package models

import (
	"encoding/json"
	"time"
)

// FrameKind enumerates the closed set of operations and events carried over
// a WebSocket connection. Dispatch is by kind through a handler table, never
// by ad hoc string matching on payload fields.
type FrameKind string

const (
	// Client -> server operations.
	KindSubscribe FrameKind = "subscribe"
	KindSend      FrameKind = "send"
	KindMarkRead  FrameKind = "mark_read"
	KindTyping    FrameKind = "typing"

	// Server -> client events.
	KindNewMessage       FrameKind = "new_message"
	KindTypingSignal     FrameKind = "typing_signal"
	KindReadStateChanged FrameKind = "read_state_changed"
	KindError            FrameKind = "error"
)

// Frame is the envelope for every WebSocket message in either direction.
// Payload holds the kind-specific body.
type Frame struct {
	Kind    FrameKind       `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload asks for fan-out events of one room on this connection.
type SubscribePayload struct {
	RoomID string `json:"room_id" validate:"required,uuid4"`
}

// SendPayload carries an outgoing message. IdempotencyKey is optional; a
// retried send with the same key returns the originally created message.
type SendPayload struct {
	RoomID         string `json:"room_id" validate:"required,uuid4"`
	Body           string `json:"body" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// MarkReadPayload marks every unread message from the other participant,
// up to the moment the operation is admitted, as read.
type MarkReadPayload struct {
	RoomID string `json:"room_id" validate:"required,uuid4"`
}

// TypingPayload signals that the sender is composing a message.
type TypingPayload struct {
	RoomID string `json:"room_id" validate:"required,uuid4"`
}

// Event is a single fan-out unit routed to every live connection subscribed
// to RoomID. Exactly one of the pointer fields is set, matching Kind.
type Event struct {
	Kind   FrameKind `json:"kind"`
	RoomID string    `json:"room_id"`

	Message   *Message        `json:"message,omitempty"`
	Typing    *TypingEvent    `json:"typing,omitempty"`
	ReadState *ReadStateEvent `json:"read_state,omitempty"`
	Error     *ErrorEvent     `json:"error,omitempty"`
}

// TypingEvent tells receivers that a participant is composing. Receivers
// expire the indicator locally at ExpiresAt; no expiry event is ever pushed.
type TypingEvent struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ReadStateEvent tells receivers that ReaderID has read the room up to
// UpToSeq. Senders use it to flip read ticks, the reader's other devices
// use it to clear the unread marker.
type ReadStateEvent struct {
	ReaderID string `json:"reader_id"`
	UpToSeq  int64  `json:"up_to_seq"`
}

// ErrorEvent reports a failed client operation back over the socket.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnreadSummary is the per-user view of unread conversations: a boolean per
// room, plus the total count of rooms with unread messages.
type UnreadSummary struct {
	PerRoom map[string]bool `json:"per_room"`
	Total   int             `json:"total"`
}
