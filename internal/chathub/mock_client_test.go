package chathub_test

import (
	"sync"

	"marketchat/backend/internal/models"
)

// mockClient is a hub client whose received events land on RecvChannel.
type mockClient struct {
	connID      string
	userID      string
	displayName string

	RecvChannel chan models.Event

	mu     sync.Mutex
	closed bool
}

func newMockClient(connID, userID string) *mockClient {
	return &mockClient{
		connID:      connID,
		userID:      userID,
		displayName: userID,
		RecvChannel: make(chan models.Event, 16),
	}
}

// newSlowMockClient has no buffer, so any delivery without a reader blocks
// and triggers the hub's drop path.
func newSlowMockClient(connID, userID string) *mockClient {
	c := newMockClient(connID, userID)
	c.RecvChannel = make(chan models.Event)
	return c
}

func (c *mockClient) GetConnID() string                   { return c.connID }
func (c *mockClient) GetUserID() string                   { return c.userID }
func (c *mockClient) GetDisplayName() string              { return c.displayName }
func (c *mockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }
func (c *mockClient) Run()                                {}

func (c *mockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.RecvChannel)
	}
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
