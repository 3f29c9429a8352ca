package entity

import (
	"fmt"
	"strings"
	"time"

	"market_sync/internal/feature/candles/domain"
)

// Timeframe is the fixed bucket duration a candle represents.
type Timeframe string

const (
	OneHour  Timeframe = "1h"
	FourHour Timeframe = "4h"
	OneDay   Timeframe = "1d"
	OneWeek  Timeframe = "1w"
)

var timeframeIntervals = map[Timeframe]time.Duration{
	OneHour:  time.Hour,
	FourHour: 4 * time.Hour,
	OneDay:   24 * time.Hour,
	OneWeek:  7 * 24 * time.Hour,
}

// Timeframes lists the supported timeframes from shortest to longest.
func Timeframes() []Timeframe {
	return []Timeframe{OneHour, FourHour, OneDay, OneWeek}
}

// ParseTimeframe parses "1h", "4h", "1d" or "1w".
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframeIntervals[tf]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownTimeframe, s)
	}
	return tf, nil
}

// Interval returns the bucket duration of tf.
func (tf Timeframe) Interval() (time.Duration, error) {
	d, ok := timeframeIntervals[tf]
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownTimeframe, string(tf))
	}
	return d, nil
}

func (tf Timeframe) String() string { return string(tf) }
