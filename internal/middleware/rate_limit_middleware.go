// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"leadflow-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIRateLimiter counts requests per identity and endpoint.
type APIRateLimiter interface {
	CheckAPIRateLimit(ctx context.Context, identityID int64, endpoint string, maxRequests int64, window time.Duration) (bool, int64, error)
	RetryAfter(ctx context.Context, identityID int64, endpoint string) (time.Duration, error)
}

// RateLimit caps an authenticated caller at max requests per window on one
// endpoint. Limiter outages let the request through. Must run after Auth().
func RateLimit(limiter APIRateLimiter, endpoint string, max int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || max <= 0 {
			c.Next()
			return
		}

		id, ok := GetIdentityID(c)
		if !ok {
			c.Next()
			return
		}

		allowed, remaining, err := limiter.CheckAPIRateLimit(c.Request.Context(), id, endpoint, max, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(max, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			if wait, err := limiter.RetryAfter(c.Request.Context(), id, endpoint); err == nil && wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second).Seconds())))
			}
			logger.Warn("rate limit exceeded",
				zap.Int64("identity_id", id),
				zap.String("endpoint", endpoint))
			response.Error(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}

		c.Next()
	}
}
