// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter per identity and endpoint.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckAPIRateLimit counts one request and reports whether it is within
// maxRequests for the current window, plus the requests left.
func (r *RateLimiter) CheckAPIRateLimit(ctx context.Context, identityID int64, endpoint string, maxRequests int64, window time.Duration) (bool, int64, error) {
	key := apiKey(identityID, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment API rate limit: %w", err)
	}

	// Set expiration on first hit
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	remaining := maxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= maxRequests, remaining, nil
}

// RetryAfter returns how long until the current window resets.
func (r *RateLimiter) RetryAfter(ctx context.Context, identityID int64, endpoint string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, apiKey(identityID, endpoint)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// ResetAPIRateLimit clears the counter
func (r *RateLimiter) ResetAPIRateLimit(ctx context.Context, identityID int64, endpoint string) error {
	return r.client.Del(ctx, apiKey(identityID, endpoint)).Err()
}

func apiKey(identityID int64, endpoint string) string {
	return fmt.Sprintf("ratelimit:api:%d:%s", identityID, endpoint)
}
