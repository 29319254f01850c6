package repository

import "context"

// RateLimiter bounds redemption attempts per client address. Allow
// reports whether the attempt may proceed; denied attempts are not
// recorded against the window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
