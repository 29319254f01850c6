//go:build !integration

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newAt := func(l *MemoryLimiter, at time.Time) {
		l.now = func() time.Time { return at }
	}

	t.Run("11th attempt within the window is denied", func(t *testing.T) {
		l := NewMemoryLimiter(10, time.Minute)
		newAt(l, base)
		for i := 0; i < 10; i++ {
			ok, err := l.Allow(ctx, "203.0.113.7")
			if err != nil || !ok {
				t.Fatalf("attempt %d should pass: ok=%v err=%v", i+1, ok, err)
			}
		}
		if ok, _ := l.Allow(ctx, "203.0.113.7"); ok {
			t.Error("11th attempt within 60s should be denied")
		}
	})

	t.Run("window resets after it slides past", func(t *testing.T) {
		l := NewMemoryLimiter(10, time.Minute)
		newAt(l, base)
		for i := 0; i < 10; i++ {
			l.Allow(ctx, "203.0.113.7")
		}
		newAt(l, base.Add(61*time.Second))
		if ok, _ := l.Allow(ctx, "203.0.113.7"); !ok {
			t.Error("attempts should succeed again after 61 seconds")
		}
	})

	t.Run("denied attempts are not recorded", func(t *testing.T) {
		l := NewMemoryLimiter(2, time.Minute)
		newAt(l, base)
		l.Allow(ctx, "k")
		l.Allow(ctx, "k")
		// Hammer while saturated; none of these may extend the window.
		for i := 0; i < 5; i++ {
			if ok, _ := l.Allow(ctx, "k"); ok {
				t.Fatal("saturated key should deny")
			}
		}
		if got := len(l.attempts["k"]); got != 2 {
			t.Errorf("denied attempts leaked into the window: %d recorded", got)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewMemoryLimiter(1, time.Minute)
		newAt(l, base)
		l.Allow(ctx, "a")
		if ok, _ := l.Allow(ctx, "b"); !ok {
			t.Error("limit on one address must not affect another")
		}
	})
}
