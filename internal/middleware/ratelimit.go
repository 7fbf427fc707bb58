// Package middleware holds gin middleware shared by the HTTP surface.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"dashcollab/backend/internal/logging"
)

// RateLimit returns a fixed-window per-client-IP limiter backed by redis.
// INCR and EXPIRE run in one pipeline so the window counter and its expiry
// stay close to atomic without a Lua script.
//
// The limiter fails open: collaboration traffic is advisory, so a redis
// outage degrades to "no limiting" rather than taking the endpoint down.
func RateLimit(rdb *redis.Client, maxRequests int, window time.Duration) gin.HandlerFunc {
	if rdb == nil {
		panic("redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()

		pipe := rdb.Pipeline()
		incr := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			logging.Warn().Err(err).Msg("rate limit pipeline failed, allowing request")
			c.Next()
			return
		}

		if incr.Val() > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
