package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rationable/api/internal/pkg/redis"
	"github.com/rationable/api/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	DefaultRateLimitMax    = 30
	DefaultRateLimitWindow = time.Minute
)

// RateLimit enforces a fixed-window limit of max requests per window. Authenticated callers
// are counted by user id, everyone else by client IP. Redis failures let the request through.
func RateLimit(rc *redis.Client, scope string, max int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if rc == nil {
			c.Next()
			return
		}

		subject := CurrentUserID(c)
		if subject == "" {
			subject = c.ClientIP()
		}
		if subject == "" {
			c.Next()
			return
		}

		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("rationable:rate_limit:%s:%s:%d", scope, subject, bucket)

		count, err := rc.IncrWithin(c.Request.Context(), key, window+time.Second)
		if err != nil {
			log.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		if count > int64(max) {
			c.Header("Retry-After", strconv.Itoa(int(window/time.Second)))
			response.TooManyRequests(c, "too many requests, slow down")
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(max)-count, 10))
		c.Next()
	}
}
