package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-client limiter backed by Redis, shared by
// every instance behind the same Redis. Authenticated clients are counted by
// user id, guests by IP.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// Middleware enforces the limit on the API routes it is bound to.
func (r *RateLimiter) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return apis.NewForbiddenError("access denied", nil)
		}

		identity := e.RealIP()
		if e.Auth != nil {
			identity = "user:" + e.Auth.Id
		}

		ok, err := r.allow(e.Request.Context(), identity)
		if err != nil {
			// Redis being down must not take the API down with it.
			return e.Next()
		}
		if !ok {
			return apis.NewTooManyRequestsError("rate limit exceeded, try again later", nil)
		}
		return e.Next()
	}
}

// allow counts the request against the identity's current window.
func (r *RateLimiter) allow(ctx context.Context, identity string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s", identity)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	return count <= int64(r.limit), nil
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	ua = strings.ToLower(ua)
	for _, pattern := range suspicious {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
