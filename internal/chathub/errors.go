package chathub

import "errors"

// Operation errors, grouped by how the gateway surfaces them. Authorization
// and validation failures never leave side effects behind: nothing is
// persisted and nothing is broadcast.
var (
	// Authorization
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotParticipant = errors.New("not a participant of this room")

	// Validation
	ErrSelfChat    = errors.New("cannot open a room with yourself")
	ErrUnknownUser = errors.New("unknown user")
	ErrEmptyBody   = errors.New("message body is empty")
	ErrBodyTooLong = errors.New("message body too long")
)
