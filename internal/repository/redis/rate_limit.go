package redis

import (
	"context"
	"fmt"
	"time"

	"sentinel-auth/internal/client"
	"sentinel-auth/internal/util"
)

const limitPrefix = "ratelimit:"

// RateLimiter applies fixed-window counters keyed by action and subject.
type RateLimiter struct {
	client *client.RedisClient
}

func NewRateLimiter(client *client.RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow increments the counter for (action, subject) and reports whether the
// count is within limit for the current window. A limit of zero disables the
// check. Redis failures fail open so a cache outage cannot lock out logins.
func (l *RateLimiter) Allow(ctx context.Context, action, subject string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := fmt.Sprintf("%s%s:%s", limitPrefix, action, subject)
	count, err := l.client.IncrWithExpire(ctx, key, window)
	if err != nil {
		util.Warn("Rate limit check failed, allowing request",
			util.String("action", action),
			util.ErrorField(err))
		return true, nil
	}

	if count > int64(limit) {
		util.Info("Rate limit exceeded",
			util.String("action", action),
			util.String("subject", subject),
			util.Int("limit", limit))
		return false, nil
	}
	return true, nil
}
