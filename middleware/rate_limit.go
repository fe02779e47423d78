package middleware

import (
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/services"
	"github.com/gin-gonic/gin"
)

// RateLimiter limits each client IP to limit requests per window on the
// routes it guards. The client IP comes from gin, which only honours
// forwarding headers from trusted proxies. Requests pass when the limiter
// backend is unavailable.
func RateLimiter(limiter services.RateLimiterInterface, scope string, limit int, window time.Duration) gin.HandlerFunc {
	log := logger.GetLogger().Named("rate-limit")
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", scope, c.ClientIP())
		decision, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			log.Warnw("Rate limit check failed, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		reset := decision.ResetIn
		if reset <= 0 {
			reset = window
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(reset.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			_ = c.Error(apperrors.RateLimitExceeded("Too many requests. Please try again later.", retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}
