package collabhub

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"dashcollab/backend/internal/logging"
	"dashcollab/backend/internal/metrics"
	"dashcollab/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// sendBufferSize bounds the outbound queue per connection. When it
	// fills, frames are dropped rather than blocking the registry loop.
	sendBufferSize = 256
)

// WebSocketClient implements Client on a gorilla/websocket connection.
type WebSocketClient struct {
	ConnID string
	UserID string
	Conn   *websocket.Conn
	Hub    *Registry
	Send   chan models.Message
}

// NewWebSocketClient wraps an upgraded connection for the given collaborator.
func NewWebSocketClient(connID, userID string, conn *websocket.Conn, hub *Registry) *WebSocketClient {
	return &WebSocketClient{
		ConnID: connID,
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Message, sendBufferSize),
	}
}

func (c *WebSocketClient) GetConnID() string                     { return c.ConnID }
func (c *WebSocketClient) GetUserID() string                     { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Message { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the send channel, which stops the write pump and closes the
// underlying connection; the read pump then unwinds on its own.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

// readPump decodes inbound frames into envelopes and hands them to the
// registry. A frame that fails to decode is skipped; one bad message must
// not break the channel for the rest of the room.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug().Str("conn_id", c.ConnID).Err(err).Msg("websocket read failed")
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			metrics.RejectedMessages.WithLabelValues("malformed").Inc()
			logging.Debug().Str("conn_id", c.ConnID).Err(err).Msg("dropping undecodable frame")
			continue
		}

		c.Hub.IncomingCh <- Inbound{Client: c, Envelope: env}
	}
}

// writePump drains the send channel to the connection and keeps the
// connection alive with pings. Queued frames are flushed through a single
// writer per wakeup.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				logging.Error().Str("conn_id", c.ConnID).Err(err).Msg("failed to encode outbound frame")
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)
			if err := w.Close(); err != nil {
				return
			}

			// Flush whatever queued up while we were writing.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				data, err := json.Marshal(next)
				if err != nil {
					continue
				}
				w, err := c.Conn.NextWriter(websocket.TextMessage)
				if err != nil {
					return
				}
				w.Write(data)
				if err := w.Close(); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
