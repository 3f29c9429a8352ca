// Package retry provides a bounded exponential backoff executor for fallible operations.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"
)

// Kind classifies an error for retry decisions.
type Kind string

const (
	// KindRateLimited marks an upstream rate-limit rejection. Always retried.
	KindRateLimited Kind = "rate_limited"
	// KindProvider marks a generic, transient provider failure.
	KindProvider Kind = "provider"
	// KindInvalidSymbol marks a request for an instrument the provider does not know.
	KindInvalidSymbol Kind = "invalid_symbol"
	// KindStorage marks a persistence failure.
	KindStorage Kind = "storage"
	// KindUnknown is reported for errors that do not advertise a kind.
	KindUnknown Kind = "unknown"
)

// Kinded is implemented by errors that advertise their retry classification.
type Kinded interface {
	Kind() Kind
}

// RetryAfterer is implemented by rate-limit errors that carry a provider-specified wait.
type RetryAfterer interface {
	RetryAfter() (time.Duration, bool)
}

// KindOf returns the kind advertised by the first error in err's chain that implements Kinded.
func KindOf(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Config holds the knobs for a Policy. It is immutable once handed to NewPolicy.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	RetryableKinds  []Kind
}

// DefaultConfig returns 3 retries, 1s base delay, 60s cap, base 2, retrying rate limits and provider errors.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		RetryableKinds:  []Kind{KindRateLimited, KindProvider},
	}
}

// Backoff returns min(BaseDelay * ExponentialBase^attempt, MaxDelay).
func (c Config) Backoff(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(attempt))
	if d > float64(c.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

func (c Config) retryable(k Kind) bool {
	if k == KindRateLimited {
		return true
	}
	for _, rk := range c.RetryableKinds {
		if rk == k {
			return true
		}
	}
	return false
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy executes operations under a Config. The zero value is not usable; use NewPolicy.
type Policy struct {
	cfg    Config
	sleep  SleepFunc
	logger *slog.Logger
}

// Option customises a Policy.
type Option func(*Policy)

// WithSleep replaces the wall-clock sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(p *Policy) { p.sleep = fn }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// NewPolicy creates a Policy. The config's RetryableKinds slice is copied.
func NewPolicy(cfg Config, opts ...Option) *Policy {
	cfg.RetryableKinds = append([]Kind(nil), cfg.RetryableKinds...)
	p := &Policy{cfg: cfg, sleep: sleepContext, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns a copy of the policy configuration.
func (p *Policy) Config() Config {
	cfg := p.cfg
	cfg.RetryableKinds = append([]Kind(nil), p.cfg.RetryableKinds...)
	return cfg
}

// Do runs op until it succeeds, fails with a non-retryable error, or exhausts p's retries.
// op is attempted at most MaxRetries+1 times; the last error is returned unchanged.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		kind := KindOf(err)
		if !p.cfg.retryable(kind) {
			return zero, err
		}
		if attempt >= p.cfg.MaxRetries {
			p.logger.Error("retries exhausted", "kind", kind, "attempts", attempt+1, "error", err)
			return zero, err
		}

		delay := p.cfg.Backoff(attempt)
		var ra RetryAfterer
		if kind == KindRateLimited && errors.As(err, &ra) {
			if hint, ok := ra.RetryAfter(); ok {
				delay = hint
			}
		}

		p.logger.Warn("operation failed, retrying",
			"kind", kind,
			"delay", delay,
			"attempt", attempt+1,
			"max_retries", p.cfg.MaxRetries,
			"error", err,
		)
		if serr := p.sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
