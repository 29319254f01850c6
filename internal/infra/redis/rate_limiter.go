package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is the Redis-backed alternative for multi-replica
// deployments: a fixed INCR+EXPIRE window per client address. The
// in-memory sliding-window limiter remains the default.
type RateLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
}

func NewRateLimiter(client RedisClient, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Incr(ctx, redeemKey(key))
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, redeemKey(key), r.window); err != nil {
			return false, err
		}
	}

	if count > int64(r.limit) {
		return false, nil
	}

	return true, nil
}

func redeemKey(addr string) string {
	return fmt.Sprintf("rate_limit:redeem:%s", addr)
}
