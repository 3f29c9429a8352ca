package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_sync/internal/feature/candles/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validCandle() Candle {
	return Candle{
		Symbol:    "BTC",
		Timeframe: OneDay,
		Provider:  "coingecko",
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      d("100"),
		High:      d("110"),
		Low:       d("90"),
		Close:     d("105"),
		Volume:    d("1000"),
	}
}

func TestCandle_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Candle)
		wantErr bool
	}{
		{"valid", func(c *Candle) {}, false},
		{"zero volume is fine", func(c *Candle) { c.Volume = decimal.Zero }, false},
		{"flat candle", func(c *Candle) {
			c.Open, c.High, c.Low, c.Close = d("5"), d("5"), d("5"), d("5")
		}, false},
		{"zero open", func(c *Candle) { c.Open = decimal.Zero }, true},
		{"negative close", func(c *Candle) { c.Close = d("-1") }, true},
		{"negative volume", func(c *Candle) { c.Volume = d("-0.1") }, true},
		{"high below close", func(c *Candle) { c.High = d("104") }, true},
		{"low above open", func(c *Candle) { c.Low = d("101") }, true},
		{"high below low", func(c *Candle) { c.High, c.Low = d("95"), d("96") }, true},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validCandle()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidCandle)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCandle_NormalizesToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("JST", 9*3600)
	o := OHLCV{
		Timestamp: time.Date(2025, 1, 1, 9, 0, 0, 0, loc),
		Open:      d("1"), High: d("2"), Low: d("1"), Close: d("2"), Volume: d("3"),
	}
	c := NewCandle("ETH", OneHour, "coingecko", o, time.Date(2025, 1, 2, 9, 0, 0, 0, loc))

	assert.Equal(t, time.UTC, c.Timestamp.Location())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), c.Timestamp)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), c.CollectedAt)
	assert.Equal(t, "ETH", c.Symbol)
	assert.Equal(t, OneHour, c.Timeframe)
}

func TestNormalizeSymbol(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"btc":       "BTC",
		" eth ":     "ETH",
		"sol/usd":   "SOL",
		"doge/USDT": "DOGE",
		"AAPL":      "AAPL",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSymbol(in), in)
	}
}

func TestTimeframe(t *testing.T) {
	t.Parallel()

	want := map[Timeframe]time.Duration{
		OneHour:  time.Hour,
		FourHour: 4 * time.Hour,
		OneDay:   24 * time.Hour,
		OneWeek:  168 * time.Hour,
	}
	for _, tf := range Timeframes() {
		got, err := tf.Interval()
		require.NoError(t, err)
		assert.Equal(t, want[tf], got)

		parsed, err := ParseTimeframe(string(tf))
		require.NoError(t, err)
		assert.Equal(t, tf, parsed)
	}

	_, err := ParseTimeframe("15m")
	assert.ErrorIs(t, err, domain.ErrUnknownTimeframe)

	_, err = Timeframe("1M").Interval()
	assert.ErrorIs(t, err, domain.ErrUnknownTimeframe)
}

func TestGapCheckResult_IssuesFound(t *testing.T) {
	t.Parallel()

	r := GapCheckResult{Gaps: []Gap{{MissingCandles: 2}, {MissingCandles: 3}}}
	assert.Equal(t, 5, r.IssuesFound())
	assert.Equal(t, 0, GapCheckResult{}.IssuesFound())
}
