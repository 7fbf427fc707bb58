package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRooms reports the currently resident rooms for operators. Empty rooms
// awaiting the idle sweep are included.
func (h *Handler) GetRooms(c *gin.Context) {
	stats, err := h.Hub.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registry unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": stats})
}

// Healthz is a trivial liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
