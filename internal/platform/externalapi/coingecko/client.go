package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"market_sync/internal/feature/candles/domain"
	"market_sync/internal/feature/candles/domain/entity"
	infrahttp "market_sync/internal/platform/http"
	"market_sync/internal/shared/ratelimiter"
)

// Name is the provider name stored on every candle fetched from CoinGecko.
const Name = "coingecko"

const (
	RateLimitPerMinute   = 50
	maxCandlesPerRequest = 5000
	defaultRetryAfter    = time.Second
)

// 同じティッカーを持つトークンが複数あるため、主要銘柄はIDを固定する
var preferredIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"SOL": "solana",
}

// Client はCoinGecko APIからOHLCVを取得するプロバイダー実装です。
// OHLCVはmarket_chart/rangeの価格・出来高系列を時間足ごとに集約して生成します。
type Client struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.RateLimiterInterface
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	symbolIDs map[string]string
}

// NewClient creates a Client. A nil limiter disables client-side pacing.
func NewClient(cfg Config, client *http.Client, limiter ratelimiter.RateLimiterInterface) *Client {
	return &Client{
		cfg:     cfg.withDefaults(),
		client:  client,
		limiter: limiter,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// Info returns CoinGecko's capabilities and limits.
func (c *Client) Info() entity.ProviderInfo {
	return entity.ProviderInfo{
		Name:                 Name,
		RequiresAPIKey:       false,
		RateLimitPerMinute:   RateLimitPerMinute,
		SupportedTimeframes:  entity.Timeframes(),
		MaxCandlesPerRequest: maxCandlesPerRequest,
		BaseURL:              c.cfg.BaseURL,
	}
}

// FetchOHLCV returns candles for symbol aggregated to tf, ascending by bucket start.
// A zero end means now and a zero start means 90 days (1h/4h) or 365 days before end.
// When limit > 0 only the newest limit candles are returned.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf entity.Timeframe, start, end time.Time, limit int) ([]entity.OHLCV, error) {
	interval, err := tf.Interval()
	if err != nil {
		return nil, err
	}

	if end.IsZero() {
		end = c.now()
	}
	end = end.UTC()
	if start.IsZero() {
		window := 365 * 24 * time.Hour
		if tf == entity.OneHour || tf == entity.FourHour {
			window = 90 * 24 * time.Hour
		}
		start = end.Add(-window)
	}
	start = start.UTC()
	if !start.Before(end) {
		return nil, nil
	}

	id, err := c.coinID(ctx, symbol)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("vs_currency", c.cfg.VsCurrency)
	q.Set("from", strconv.FormatInt(start.Unix(), 10))
	q.Set("to", strconv.FormatInt(end.Unix(), 10))

	body, err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart/range", q)
	if err != nil {
		return nil, err
	}

	candles, err := aggregate(body, interval, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// aggregate は[ts_ms, value]形式の価格・出来高ペアを時間足のバケットに集約します。
// バケットの始値は最初の価格、終値は最後の価格、出来高は合計です。
func aggregate(body []byte, interval time.Duration, from, to int64) ([]entity.OHLCV, error) {
	prices := gjson.GetBytes(body, "prices").Array()
	volumes := gjson.GetBytes(body, "total_volumes").Array()
	if len(prices) == 0 {
		return nil, nil
	}

	secs := int64(interval / time.Second)
	buckets := map[int64]*entity.OHLCV{}
	n := min(len(prices), len(volumes))
	for i := 0; i < n; i++ {
		p := prices[i].Array()
		v := volumes[i].Array()
		if len(p) < 2 || len(v) < 2 {
			continue
		}

		ts := p[0].Int() / 1000
		if ts < from || ts > to {
			continue
		}

		price, err := decimal.NewFromString(p[1].Raw)
		if err != nil {
			return nil, &domain.ProviderError{Provider: Name, Msg: fmt.Sprintf("parse price %q", p[1].Raw), Err: err}
		}
		vol, err := decimal.NewFromString(v[1].Raw)
		if err != nil {
			return nil, &domain.ProviderError{Provider: Name, Msg: fmt.Sprintf("parse volume %q", v[1].Raw), Err: err}
		}

		idx := ts / secs
		b, ok := buckets[idx]
		if !ok {
			buckets[idx] = &entity.OHLCV{
				Timestamp: time.Unix(idx*secs, 0).UTC(),
				Open:      price,
				High:      price,
				Low:       price,
				Close:     price,
				Volume:    vol,
			}
			continue
		}
		b.Close = price
		if price.GreaterThan(b.High) {
			b.High = price
		}
		if price.LessThan(b.Low) {
			b.Low = price
		}
		b.Volume = b.Volume.Add(vol)
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]entity.OHLCV, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	return out, nil
}

// CurrentPrice returns the latest USD price for symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	id, err := c.coinID(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", c.cfg.VsCurrency)

	body, err := c.get(ctx, "/simple/price", q)
	if err != nil {
		return decimal.Zero, err
	}

	// コインIDに"."が含まれても安全なようにMap経由で参照する
	res := gjson.ParseBytes(body).Map()[id].Get(c.cfg.VsCurrency)
	if !res.Exists() {
		return decimal.Zero, &domain.ProviderError{Provider: Name, Msg: "unexpected price response: " + string(body)}
	}
	price, err := decimal.NewFromString(res.Raw)
	if err != nil {
		return decimal.Zero, &domain.ProviderError{Provider: Name, Msg: fmt.Sprintf("parse price %q", res.Raw), Err: err}
	}
	return price, nil
}

// ValidateSymbol reports whether CoinGecko knows symbol. Lookup failures other
// than an unknown symbol are returned as errors.
func (c *Client) ValidateSymbol(ctx context.Context, symbol string) (bool, error) {
	if _, err := c.coinID(ctx, symbol); err != nil {
		if errors.Is(err, domain.ErrInvalidSymbol) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SupportedSymbols returns every known ticker, sorted.
func (c *Client) SupportedSymbols(ctx context.Context) ([]string, error) {
	ids, err := c.symbolMap(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for s := range ids {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) coinID(ctx context.Context, symbol string) (string, error) {
	ids, err := c.symbolMap(ctx)
	if err != nil {
		return "", err
	}
	norm := entity.NormalizeSymbol(symbol)
	id, ok := ids[norm]
	if !ok {
		return "", &domain.InvalidSymbolError{Symbol: norm, Provider: Name}
	}
	return id, nil
}

// symbolMap は/coins/listからティッカー→コインIDの対応表を一度だけ読み込みます。
// 同じティッカーが複数ある場合は最初のIDを採用し、preferredIDsで上書きします。
func (c *Client) symbolMap(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.symbolIDs != nil {
		return c.symbolIDs, nil
	}

	q := url.Values{}
	q.Set("include_platform", "false")
	body, err := c.get(ctx, "/coins/list", q)
	if err != nil {
		return nil, err
	}

	ids := map[string]string{}
	gjson.ParseBytes(body).ForEach(func(_, item gjson.Result) bool {
		sym := strings.ToUpper(strings.TrimSpace(item.Get("symbol").String()))
		id := strings.TrimSpace(item.Get("id").String())
		if sym == "" || id == "" {
			return true
		}
		if _, ok := ids[sym]; !ok {
			ids[sym] = id
		}
		return true
	})
	if len(ids) == 0 {
		return nil, &domain.ProviderError{Provider: Name, Msg: "failed to load symbol list"}
	}

	for sym, id := range preferredIDs {
		if cur, ok := ids[sym]; ok && cur != id {
			c.logger.Debug("overriding coingecko id", "symbol", sym, "from", cur, "to", id)
		}
		ids[sym] = id
	}

	c.symbolIDs = ids
	c.logger.Debug("loaded coingecko symbols", "count", len(ids))
	return ids, nil
}

// get はGETリクエストを送信し、レスポンスボディを返します。
// 429はRateLimitedError、400以上とネットワークエラーはProviderErrorに変換します。
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.cfg.APIKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ProviderError{Provider: Name, Msg: "network error", Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.RateLimitedError{
			Provider:       Name,
			RetryAfterHint: infrahttp.ParseRetryAfter(res.Header, c.now(), defaultRetryAfter),
		}
	}
	if res.StatusCode >= 400 {
		return nil, &domain.ProviderError{
			Provider: Name,
			Msg:      fmt.Sprintf("http %d: %s", res.StatusCode, infrahttp.ReadSnippet(res.Body, 512)),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: Name, Msg: "read body", Err: err}
	}
	if !gjson.ValidBytes(body) {
		return nil, &domain.ProviderError{Provider: Name, Msg: "invalid json response"}
	}
	return body, nil
}
