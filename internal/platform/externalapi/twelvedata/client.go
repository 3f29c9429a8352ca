package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market_sync/internal/feature/candles/domain"
	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/platform/externalapi/twelvedata/dto"
	infrahttp "market_sync/internal/platform/http"
	"market_sync/internal/shared/ratelimiter"
)

// Name is the provider name stored on every candle fetched from Twelve Data.
const Name = "twelvedata"

const (
	RateLimitPerMinute   = 8
	maxCandlesPerRequest = 5000
	// 無料プランは1分単位で制限されるため、ヒントがない場合は次の窓まで待つ
	defaultRetryAfter = time.Minute
	dateTimeLayout    = "2006-01-02 15:04:05"
)

var intervals = map[entity.Timeframe]string{
	entity.OneHour:  "1h",
	entity.FourHour: "4h",
	entity.OneDay:   "1day",
	entity.OneWeek:  "1week",
}

// Client はTwelve Data外部APIからOHLCVを取得するプロバイダー実装です。
type Client struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.RateLimiterInterface
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient は指定された設定とHTTPクライアントでClientを生成します。
// limiterがnilの場合はクライアント側のペーシングを行いません。
func NewClient(cfg Config, client *http.Client, limiter ratelimiter.RateLimiterInterface) *Client {
	return &Client{
		cfg:     cfg.withDefaults(),
		client:  client,
		limiter: limiter,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// Info returns Twelve Data's capabilities and limits.
func (t *Client) Info() entity.ProviderInfo {
	return entity.ProviderInfo{
		Name:                 Name,
		RequiresAPIKey:       true,
		RateLimitPerMinute:   RateLimitPerMinute,
		SupportedTimeframes:  entity.Timeframes(),
		MaxCandlesPerRequest: maxCandlesPerRequest,
		BaseURL:              t.cfg.BaseURL,
	}
}

// FetchOHLCV はTwelve Data APIから時系列データを取得し、古い順に並べて返します。
// start/endがゼロ値の場合はその境界を指定しません。limitが0の場合は上限件数を要求します。
func (t *Client) FetchOHLCV(ctx context.Context, symbol string, tf entity.Timeframe, start, end time.Time, limit int) ([]entity.OHLCV, error) {
	interval, ok := intervals[tf]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTimeframe, string(tf))
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return nil, nil
	}
	if limit <= 0 || limit > maxCandlesPerRequest {
		limit = maxCandlesPerRequest
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(limit))
	q.Set("timezone", "UTC")
	if !start.IsZero() {
		q.Set("start_date", start.UTC().Format(dateTimeLayout))
	}
	if !end.IsZero() {
		q.Set("end_date", end.UTC().Format(dateTimeLayout))
	}

	var body dto.TimeSeriesResponse
	if err := t.get(ctx, "/time_series", q, symbol, &body); err != nil {
		// 指定期間にデータがない場合はエラーではなく空として扱う
		if isNoData(err) {
			return nil, nil
		}
		return nil, err
	}

	candles := make([]entity.OHLCV, 0, len(body.Values))
	for _, v := range body.Values {
		c, err := toOHLCV(v)
		if err != nil {
			return nil, &domain.ProviderError{Provider: Name, Msg: "parse time series", Err: err}
		}
		candles = append(candles, c)
	}
	// APIは新しい順に返す
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

func toOHLCV(v dto.TimeSeriesValue) (entity.OHLCV, error) {
	// タイムスタンプをパース
	tm, err := time.Parse(dateTimeLayout, v.Datetime)
	if err != nil {
		tm, err = time.Parse("2006-01-02", v.Datetime)
		if err != nil {
			return entity.OHLCV{}, fmt.Errorf("parse time %q: %w", v.Datetime, err)
		}
	}

	var out entity.OHLCV
	out.Timestamp = tm.UTC()
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", v.Open, &out.Open},
		{"high", v.High, &out.High},
		{"low", v.Low, &out.Low},
		{"close", v.Close, &out.Close},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return entity.OHLCV{}, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	// 出来高がない銘柄は0とする
	if v.Volume != "" {
		vol, err := decimal.NewFromString(v.Volume)
		if err != nil {
			return entity.OHLCV{}, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}
		out.Volume = vol
	}
	return out, nil
}

// CurrentPrice returns the latest traded price for symbol.
func (t *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var body dto.PriceResponse
	if err := t.get(ctx, "/price", q, symbol, &body); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return decimal.Zero, &domain.ProviderError{Provider: Name, Msg: fmt.Sprintf("parse price %q", body.Price), Err: err}
	}
	return price, nil
}

// ValidateSymbol reports whether Twelve Data lists symbol as a stock.
func (t *Client) ValidateSymbol(ctx context.Context, symbol string) (bool, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var body dto.StocksResponse
	if err := t.get(ctx, "/stocks", q, symbol, &body); err != nil {
		return false, err
	}
	return len(body.Data) > 0, nil
}

// SupportedSymbols returns the distinct stock symbols Twelve Data lists, sorted.
func (t *Client) SupportedSymbols(ctx context.Context) ([]string, error) {
	var body dto.StocksResponse
	if err := t.get(ctx, "/stocks", url.Values{}, "", &body); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(body.Data))
	out := make([]string, 0, len(body.Data))
	for _, d := range body.Data {
		s := strings.ToUpper(strings.TrimSpace(d.Symbol))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// get はGETリクエストを送信し、JSONレスポンスをoutにデコードします。
// Twelve DataはHTTP 200でもstatus:"error"を返すため、ボディのcodeも判定します。
func (t *Client) get(ctx context.Context, path string, q url.Values, symbol string, out any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	q.Set("apikey", t.cfg.TwelveDataAPIKey)
	u := fmt.Sprintf("%s%s?%s", t.cfg.BaseURL, path, q.Encode())

	// リクエストオブジェクトを作成
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	// リクエストを実行
	res, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.ProviderError{Provider: Name, Msg: "network error", Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			t.logger.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitedError{
			Provider:       Name,
			RetryAfterHint: infrahttp.ParseRetryAfter(res.Header, t.now(), defaultRetryAfter),
		}
	}
	if res.StatusCode >= 400 {
		return &domain.ProviderError{
			Provider: Name,
			Msg:      fmt.Sprintf("twelvedata http %d: %s", res.StatusCode, infrahttp.ReadSnippet(res.Body, 512)),
		}
	}

	// JSONレスポンスをDTOにデコード
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &domain.ProviderError{Provider: Name, Msg: "decode response", Err: err}
	}

	var ef dto.ErrorFields
	switch b := out.(type) {
	case *dto.TimeSeriesResponse:
		ef = b.ErrorFields
	case *dto.PriceResponse:
		ef = b.ErrorFields
	case *dto.StocksResponse:
		ef = b.ErrorFields
	}
	if ef.Status != "error" {
		return nil
	}
	switch ef.Code {
	case http.StatusTooManyRequests:
		return &domain.RateLimitedError{Provider: Name, RetryAfterHint: defaultRetryAfter}
	case http.StatusNotFound:
		return &domain.InvalidSymbolError{Symbol: symbol, Provider: Name}
	}
	return &domain.ProviderError{Provider: Name, Msg: fmt.Sprintf("code %d: %s", ef.Code, ef.Message)}
}

func isNoData(err error) bool {
	var pe *domain.ProviderError
	return errors.As(err, &pe) && strings.Contains(strings.ToLower(pe.Msg), "no data is available")
}
