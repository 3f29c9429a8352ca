package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/shared/retry"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// bar は時刻tの妥当なOHLCVを返します。
func bar(t time.Time) entity.OHLCV {
	return entity.OHLCV{Timestamp: t, Open: d("100"), High: d("110"), Low: d("95"), Close: d("105"), Volume: d("12.5")}
}

// series はstartからinterval刻みでn本のOHLCVを生成します。
func series(start time.Time, interval time.Duration, n int) []entity.OHLCV {
	out := make([]entity.OHLCV, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, bar(start.Add(time.Duration(i)*interval)))
	}
	return out
}

type fetchCall struct {
	Symbol     string
	Timeframe  entity.Timeframe
	Start, End time.Time
}

// fakeMarket はMarketProviderのモックです。FetchFuncが未設定の場合は
// Seriesから[start, end]に含まれる足を返します。
type fakeMarket struct {
	mu        sync.Mutex
	Series    []entity.OHLCV
	FetchFunc func(ctx context.Context, symbol string, tf entity.Timeframe, start, end time.Time) ([]entity.OHLCV, error)
	Calls     []fetchCall
}

func (f *fakeMarket) FetchOHLCV(ctx context.Context, symbol string, tf entity.Timeframe, start, end time.Time, limit int) ([]entity.OHLCV, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, fetchCall{Symbol: symbol, Timeframe: tf, Start: start, End: end})
	fn := f.FetchFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, symbol, tf, start, end)
	}
	var out []entity.OHLCV
	for _, o := range f.Series {
		if !o.Timestamp.Before(start) && !o.Timestamp.After(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

// memRepo is an in-memory CandleRepository with the same duplicate-skipping contract as the gorm adapter.
type memRepo struct {
	mu   sync.Mutex
	rows map[string]entity.Candle

	LatestErr error
	ListErr   error
	InsertErr error
	// InsertErrFunc はチャンクごとにエラーを差し込みます（InsertErrより後に評価）。
	InsertErrFunc func(candles []entity.Candle) error
	InsertCalls   int
	ListCalls     []fetchCall
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]entity.Candle{}}
}

func key(symbol string, tf entity.Timeframe, provider string, ts time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", symbol, tf, provider, ts.Unix())
}

func (r *memRepo) seed(symbol string, tf entity.Timeframe, provider string, ts ...time.Time) {
	for _, t := range ts {
		c := entity.NewCandle(symbol, tf, provider, bar(t), t)
		r.rows[key(symbol, tf, provider, c.Timestamp)] = c
	}
}

func (r *memRepo) LatestTimestamp(ctx context.Context, symbol string, tf entity.Timeframe, provider string) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LatestErr != nil {
		return time.Time{}, false, r.LatestErr
	}
	var latest time.Time
	found := false
	for _, c := range r.rows {
		if c.Symbol == symbol && c.Timeframe == tf && c.Provider == provider {
			if !found || c.Timestamp.After(latest) {
				latest, found = c.Timestamp, true
			}
		}
	}
	return latest, found, nil
}

func (r *memRepo) ListTimestamps(ctx context.Context, symbol string, tf entity.Timeframe, provider string, start, end time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ListCalls = append(r.ListCalls, fetchCall{Symbol: symbol, Timeframe: tf, Start: start, End: end})
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []time.Time
	for _, c := range r.rows {
		if c.Symbol == symbol && c.Timeframe == tf && c.Provider == provider &&
			!c.Timestamp.Before(start) && !c.Timestamp.After(end) {
			out = append(out, c.Timestamp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *memRepo) InsertMarketData(ctx context.Context, candles []entity.Candle, batchSize int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InsertCalls++
	if r.InsertErr != nil {
		return 0, r.InsertErr
	}
	if r.InsertErrFunc != nil {
		if err := r.InsertErrFunc(candles); err != nil {
			return 0, err
		}
	}
	n := 0
	for _, c := range candles {
		k := key(c.Symbol, c.Timeframe, c.Provider, c.Timestamp)
		if _, ok := r.rows[k]; ok {
			continue
		}
		r.rows[k] = c
		n++
	}
	return n, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// recordingPolicy はスリープせずに待機時間を記録するリトライポリシーを返します。
func recordingPolicy(maxRetries int) (*retry.Policy, *[]time.Duration) {
	var sleeps []time.Duration
	p := retry.NewPolicy(retry.Config{
		MaxRetries:      maxRetries,
		BaseDelay:       time.Second,
		MaxDelay:        time.Minute,
		ExponentialBase: 2,
		RetryableKinds:  []retry.Kind{retry.KindRateLimited, retry.KindProvider},
	},
		retry.WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}),
		retry.WithLogger(discardLogger),
	)
	return p, &sleeps
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
