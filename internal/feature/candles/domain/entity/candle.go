// Package entity defines the domain models for the candles feature.
package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market_sync/internal/feature/candles/domain"
)

// OHLCV is a single provider observation for one time bucket, before it is
// attributed to a symbol, timeframe and provider.
type OHLCV struct {
	Timestamp time.Time // Bucket start, UTC
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Candle is a stored OHLCV observation. Its identity is
// (Symbol, Timeframe, Provider, Timestamp); once stored it never changes.
type Candle struct {
	Symbol      string    // Instrument code (e.g., "BTC", "AAPL")
	Timeframe   Timeframe // Bucket duration
	Provider    string    // Upstream source name (e.g., "coingecko")
	Timestamp   time.Time // Bucket start, UTC
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	CollectedAt time.Time // When this row was fetched
}

// Validate checks the price and volume invariants of c.
func (c Candle) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"open": c.Open, "high": c.High, "low": c.Low, "close": c.Close,
	} {
		if !v.IsPositive() {
			return fmt.Errorf("%w: %s must be > 0, got %s", domain.ErrInvalidCandle, name, v)
		}
	}
	if c.Volume.IsNegative() {
		return fmt.Errorf("%w: volume must be >= 0, got %s", domain.ErrInvalidCandle, c.Volume)
	}
	if c.High.LessThan(decimal.Max(c.Open, c.Close, c.Low)) {
		return fmt.Errorf("%w: high %s below open/close/low", domain.ErrInvalidCandle, c.High)
	}
	if c.Low.GreaterThan(decimal.Min(c.Open, c.Close, c.High)) {
		return fmt.Errorf("%w: low %s above open/close/high", domain.ErrInvalidCandle, c.Low)
	}
	return nil
}

// NewCandle attributes an observation to symbol, timeframe and provider.
func NewCandle(symbol string, tf Timeframe, provider string, o OHLCV, collectedAt time.Time) Candle {
	return Candle{
		Symbol:      symbol,
		Timeframe:   tf,
		Provider:    provider,
		Timestamp:   o.Timestamp.UTC(),
		Open:        o.Open,
		High:        o.High,
		Low:         o.Low,
		Close:       o.Close,
		Volume:      o.Volume,
		CollectedAt: collectedAt.UTC(),
	}
}

// NormalizeSymbol trims and upper-cases s and strips a trailing /USD or /USDT quote.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, suffix := range []string{"/USDT", "/USD"} {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}
