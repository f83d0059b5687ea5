package ingestion

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/sitepulse-io/sitepulse/internal/core/errors"
)

// rateLimitMiddleware caps tracking calls per client IP per minute using the
// shared counter store. A zero limit disables the check entirely. Counter
// failures fail open: a broken limiter must not take the tracker down with it.
func (s *Service) rateLimitMiddleware() gin.HandlerFunc {
	if s.opts.RateLimitPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := "rl:" + c.ClientIP()
		count, err := s.counters.Increment(c.Request.Context(), key, time.Minute)
		if err != nil {
			slog.Warn("Rate limit counter unavailable, allowing request", "error", err)
			c.Next()
			return
		}
		if count > int64(s.opts.RateLimitPerMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httperr.ErrorResponse{
				ErrorType: httperr.HttpRateLimitedError,
				Message:   "Too many tracking requests, slow down",
			})
			return
		}
		c.Next()
	}
}
