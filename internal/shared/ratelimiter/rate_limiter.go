package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RateLimiterInterface paces calls to an upstream API.
type RateLimiterInterface interface {
	Wait(ctx context.Context) error
}

// RateLimiter allows at most limit calls per interval using a fixed window.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int           // calls allowed per window
	interval  time.Duration // window length
	count     int
	lastReset time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a RateLimiter. A non-positive limit disables pacing.
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		interval:  interval,
		lastReset: time.Now(),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// PerMinute is shorthand for NewRateLimiter(limit, time.Minute).
func PerMinute(limit int) *RateLimiter {
	return NewRateLimiter(limit, time.Minute)
}

// Wait blocks until another call is allowed in the current window, or ctx is done.
// ロックはスリープ中に保持しないため、待機中の呼び出し同士もそれぞれのctxで中断できる。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.limit <= 0 {
		return ctx.Err()
	}

	for {
		rl.mu.Lock()
		now := rl.now()
		if now.Sub(rl.lastReset) >= rl.interval {
			rl.count = 0
			rl.lastReset = now
		}
		if rl.count < rl.limit {
			rl.count++
			rl.mu.Unlock()
			return nil
		}
		wait := rl.interval - now.Sub(rl.lastReset)
		rl.mu.Unlock()

		slog.Warn("rate limit window full, waiting", "limit", rl.limit, "wait", wait)
		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
