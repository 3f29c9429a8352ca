// Package externalapi resolves market data providers by name.
package externalapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"market_sync/internal/feature/candles/domain/entity"
	candleusecase "market_sync/internal/feature/candles/usecase"
	symbolusecase "market_sync/internal/feature/symbollist/usecase"
	"market_sync/internal/platform/externalapi/coingecko"
	"market_sync/internal/platform/externalapi/twelvedata"
	infrahttp "market_sync/internal/platform/http"
	"market_sync/internal/shared/ratelimiter"
)

// ErrUnknownProvider is returned by New for names without a registered factory.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider is an upstream source of OHLCV data and quotes.
// FetchOHLCV returns candles ascending by timestamp; zero start/end mean unset and limit 0 means no limit.
type Provider interface {
	FetchOHLCV(ctx context.Context, symbol string, tf entity.Timeframe, start, end time.Time, limit int) ([]entity.OHLCV, error)
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	ValidateSymbol(ctx context.Context, symbol string) (bool, error)
	SupportedSymbols(ctx context.Context) ([]string, error)
	Info() entity.ProviderInfo
}

var (
	_ candleusecase.MarketProvider  = (Provider)(nil)
	_ symbolusecase.SymbolValidator = (Provider)(nil)

	_ Provider = (*coingecko.Client)(nil)
	_ Provider = (*twelvedata.Client)(nil)
)

// Options are the provider-agnostic construction parameters.
type Options struct {
	APIKey  string
	BaseURL string // empty selects the provider's default
	Timeout time.Duration
	// RateLimitPerMinute overrides the provider's own budget; 0 keeps it, negative disables pacing.
	RateLimitPerMinute int
	UserAgent          string
	// HTTPClient replaces the client built from Timeout and UserAgent, mainly for tests.
	HTTPClient *http.Client
}

func (o Options) httpClient(defaultTimeout time.Duration) *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := o.UserAgent
	if ua == "" {
		ua = infrahttp.DefaultUserAgent
	}
	return infrahttp.NewHTTPClient(timeout, ua)
}

func (o Options) limiter(perMinute int) ratelimiter.RateLimiterInterface {
	switch {
	case o.RateLimitPerMinute < 0:
		return nil
	case o.RateLimitPerMinute > 0:
		perMinute = o.RateLimitPerMinute
	}
	return ratelimiter.PerMinute(perMinute)
}

// Factory builds a Provider from Options.
type Factory func(opts Options) Provider

var factories = map[string]Factory{
	coingecko.Name: func(o Options) Provider {
		cfg := coingecko.Config{APIKey: o.APIKey, BaseURL: o.BaseURL, Timeout: o.Timeout}
		return coingecko.NewClient(cfg, o.httpClient(30*time.Second), o.limiter(coingecko.RateLimitPerMinute))
	},
	twelvedata.Name: func(o Options) Provider {
		cfg := twelvedata.Config{TwelveDataAPIKey: o.APIKey, BaseURL: o.BaseURL, Timeout: o.Timeout}
		return twelvedata.NewClient(cfg, o.httpClient(10*time.Second), o.limiter(twelvedata.RateLimitPerMinute))
	},
}

// New returns the provider registered under name.
func New(name string, opts Options) (Provider, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, name, Names())
	}
	return f(opts), nil
}

// Names lists the registered provider names, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
