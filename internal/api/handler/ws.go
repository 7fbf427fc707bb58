package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dashcollab/backend/internal/collabhub"
	"dashcollab/backend/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Collaboration is same-origin in production; origin checking belongs
	// to the reverse proxy in this deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket validates the session token and upgrades the connection.
// The client is registered with the hub immediately; room membership starts
// only when its first join_dashboard frame arrives.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	userID, err := h.validateAndGetUserID(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := collabhub.NewWebSocketClient(uuid.New().String(), userID, conn, h.Hub)
	h.Hub.RegisterCh <- client
	client.Run()
}

// bearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for browser WebSocket clients, which cannot
// set headers on the handshake.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}
