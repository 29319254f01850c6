package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.RateLimiter = (*MemoryLimiter)(nil)

// MemoryLimiter keeps a sliding window of attempt timestamps per key,
// in-process only; a restart clears all counters. On each check it trims
// timestamps older than the window before comparing against the cap, and
// a denied attempt is not recorded.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	threshold := now.Add(-l.window)
	recent := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if at.After(threshold) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false, nil
	}
	l.attempts[key] = append(recent, now)
	return true, nil
}
