package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ClientLimiter decides whether a client identity may proceed.
// *ratelimit.Limiter satisfies it.
type ClientLimiter interface {
	Allow(key string) (bool, time.Duration)
	Capacity() int
}

// RateLimit is a Gin middleware that charges one token per request to the
// bucket of c.ClientIP(). Forwarded headers only count when the engine trusts
// the peer (see api.NewRouter); otherwise the key is the TCP peer address.
//
// Behavior:
//   - Sets X-RateLimit-Limit on every response.
//   - When the bucket is empty the request is aborted with 429, a Retry-After
//     header (whole seconds) and an ErrorResponse body. No handler runs.
//
// Usage:
//
//	api := router.Group("/api/v1", middleware.RateLimit(limiter))
func RateLimit(l ClientLimiter) gin.HandlerFunc {
	limit := strconv.Itoa(l.Capacity())
	return func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", limit)

		ok, wait := l.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			AbortWithError(c, http.StatusTooManyRequests, "Too many requests", nil)
			return
		}
		c.Next()
	}
}
