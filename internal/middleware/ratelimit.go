package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/response"
)

// Counter increments a windowed counter and returns the new count and remaining window.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimit caps requests per caller within window. The caller is the
// authenticated user, falling back to the client IP. Counter failures let the
// request through.
func RateLimit(counter Counter, scope string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}
		subject := c.ClientIP()
		if claims, ok := Claims(c); ok {
			subject = claims.UserID
		}
		key := fmt.Sprintf("placement:ratelimit:%s:%s", scope, subject)

		count, ttl, err := counter.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn("rate limit counter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(limit) {
			if ttl <= 0 {
				ttl = window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
