// Package domain defines domain-level errors for the candles feature.
package domain

import (
	"errors"
	"fmt"
	"time"

	"market_sync/internal/shared/retry"
)

var (
	// ErrInvalidSymbol indicates the provider does not know the requested instrument.
	// It is never retried.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrUnknownTimeframe indicates a timeframe outside 1h, 4h, 1d and 1w.
	ErrUnknownTimeframe = errors.New("unknown timeframe")

	// ErrInvalidCandle indicates a candle violating the OHLCV price invariants.
	ErrInvalidCandle = errors.New("invalid candle")
)

// InvalidSymbolError carries the offending symbol and matches ErrInvalidSymbol.
type InvalidSymbolError struct {
	Symbol   string
	Provider string
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("%s: symbol %q not supported", e.Provider, e.Symbol)
}

func (e *InvalidSymbolError) Is(target error) bool { return target == ErrInvalidSymbol }

func (e *InvalidSymbolError) Kind() retry.Kind { return retry.KindInvalidSymbol }

// RateLimitedError is returned when the provider rejects a request for exceeding its rate limit.
// RetryAfterHint is zero when the provider gave no hint.
type RateLimitedError struct {
	Provider       string
	RetryAfterHint time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfterHint > 0 {
		return fmt.Sprintf("%s: rate limit exceeded, retry after %s", e.Provider, e.RetryAfterHint)
	}
	return fmt.Sprintf("%s: rate limit exceeded", e.Provider)
}

func (e *RateLimitedError) Kind() retry.Kind { return retry.KindRateLimited }

// RetryAfter returns the provider's hint, if any.
func (e *RateLimitedError) RetryAfter() (time.Duration, bool) {
	return e.RetryAfterHint, e.RetryAfterHint > 0
}

// ProviderError is a generic, transient provider failure.
type ProviderError struct {
	Provider string
	Msg      string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Kind() retry.Kind { return retry.KindProvider }

// StorageError wraps a persistence failure with the failing operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Kind() retry.Kind { return retry.KindStorage }
