package collabhub_test

import (
	"sync/atomic"

	"dashcollab/backend/internal/models"
)

// MockClient is a channel-backed stand-in for a websocket connection. The
// registry writes outbound frames to RecvChannel where tests can assert on
// them.
type MockClient struct {
	connID      string
	userID      string
	closed      atomic.Bool
	RecvChannel chan models.Message
}

func newMockClient(connID, userID string) *MockClient {
	return &MockClient{
		connID:      connID,
		userID:      userID,
		RecvChannel: make(chan models.Message, 32),
	}
}

func (c *MockClient) GetConnID() string { return c.connID }

func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) GetSendChannel() chan<- models.Message { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Store(true)
}
