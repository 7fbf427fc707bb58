package collabhub

import "dashcollab/backend/internal/models"

// Client is the interface for one connected collaborator session. It
// abstracts the underlying transport so the registry can manage real
// websocket connections and test doubles uniformly.
type Client interface {
	// GetConnID returns the connection id assigned at upgrade time. It is
	// unique per connection, not per user: the same user in two tabs holds
	// two connection ids.
	GetConnID() string
	// GetUserID returns the authenticated collaborator id from the session
	// token. The registry stamps it onto joins and relayed events so a
	// client cannot act as someone else.
	GetUserID() string

	// GetSendChannel returns the channel the registry writes outbound
	// frames to. Sends are non-blocking; a full buffer means the frame is
	// dropped.
	GetSendChannel() chan<- models.Message

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's connection and send channel.
	Close()
}
