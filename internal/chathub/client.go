package chathub

import "marketchat/backend/internal/models"

// Client is the interface for one live connection of one user. It abstracts
// the underlying transport so the hub can manage connections uniformly; a
// user may hold several clients at once (phone plus browser tab).
type Client interface {
	// GetConnID returns the unique identifier of this connection.
	GetConnID() string
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string
	// GetDisplayName returns the user's display name, carried in typing
	// signals.
	GetDisplayName() string

	// GetSendChannel returns the channel the hub pushes fan-out events into.
	// The hub never blocks on it: a full buffer gets the connection dropped.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's connection and send channel.
	Close()
}
