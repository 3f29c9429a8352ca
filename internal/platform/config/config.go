// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/platform/db"
	"market_sync/internal/platform/externalapi"
	"market_sync/internal/platform/logging"
	"market_sync/internal/platform/redis"
	"market_sync/internal/shared/retry"
)

// Config represents the application configuration.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	DB       db.Config      `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Provider ProviderConfig `envPrefix:"PROVIDER_"`
	Collect  CollectConfig  `envPrefix:"COLLECT_"`
	Retry    RetryConfig    `envPrefix:"RETRY_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
}

// AppConfig represents the application configuration.
type AppConfig struct {
	Name      string `env:"NAME" envDefault:"market_sync"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "text" or "json"
}

// RedisConfig enables the candle cache. Redis is optional; the app runs without it.
type RedisConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	Conn redis.Config
}

// ProviderConfig selects and configures the upstream market data provider.
type ProviderConfig struct {
	Name               string        `env:"NAME" envDefault:"coingecko"`
	APIKey             string        `env:"API_KEY"`
	BaseURL            string        `env:"BASE_URL"`
	Timeout            time.Duration `env:"TIMEOUT" envDefault:"30s"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"0"`
}

// CollectConfig holds collection and integrity check defaults.
type CollectConfig struct {
	Symbols       []string      `env:"SYMBOLS" envSeparator:"," envDefault:"BTC,ETH,SOL"`
	Timeframe     string        `env:"TIMEFRAME" envDefault:"1d"`
	RetentionDays int           `env:"RETENTION_DAYS" envDefault:"730"`
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"100"`
	GapCheck      bool          `env:"GAP_CHECK" envDefault:"true"`
	GapSlack      time.Duration `env:"GAP_SLACK" envDefault:"1s"`
	BaseCurrency  string        `env:"BASE_CURRENCY" envDefault:"USD"`
	// Interval is the period of `ingest schedule`.
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
}

// RetryConfig mirrors retry.Config.
type RetryConfig struct {
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	BaseDelay       time.Duration `env:"BASE_DELAY" envDefault:"1s"`
	MaxDelay        time.Duration `env:"MAX_DELAY" envDefault:"60s"`
	ExponentialBase float64       `env:"EXPONENTIAL_BASE" envDefault:"2.0"`
}

// HTTPConfig configures cmd/server.
type HTTPConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Load reads the optional .env files (default ".env"), parses the environment and validates the result.
func Load(envFiles ...string) (*Config, error) {
	// .envファイルは存在しなくてもよい
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", c.DB.Driver))
	}

	switch strings.ToLower(c.App.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("APP_LOG_FORMAT: must be text or json, got %q", c.App.LogFormat))
	}

	if _, err := logging.ParseLevel(c.App.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("APP_LOG_LEVEL: %w", err))
	}

	if !contains(externalapi.Names(), c.Provider.Name) {
		errs = append(errs, fmt.Errorf("PROVIDER_NAME: %w: %q", externalapi.ErrUnknownProvider, c.Provider.Name))
	}

	if _, err := entity.ParseTimeframe(c.Collect.Timeframe); err != nil {
		errs = append(errs, fmt.Errorf("COLLECT_TIMEFRAME: %w", err))
	}
	if c.Collect.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("COLLECT_RETENTION_DAYS: must be > 0, got %d", c.Collect.RetentionDays))
	}
	if c.Collect.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("COLLECT_BATCH_SIZE: must be > 0, got %d", c.Collect.BatchSize))
	}
	if c.Collect.GapSlack < 0 {
		errs = append(errs, fmt.Errorf("COLLECT_GAP_SLACK: must be >= 0, got %s", c.Collect.GapSlack))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_RETRIES: must be >= 0, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.ExponentialBase < 1 {
		errs = append(errs, fmt.Errorf("RETRY_EXPONENTIAL_BASE: must be >= 1, got %g", c.Retry.ExponentialBase))
	}
	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		errs = append(errs, fmt.Errorf("RETRY_BASE_DELAY: %s exceeds RETRY_MAX_DELAY %s", c.Retry.BaseDelay, c.Retry.MaxDelay))
	}

	return errors.Join(errs...)
}

// DefaultTimeframe returns the validated COLLECT_TIMEFRAME.
func (c CollectConfig) DefaultTimeframe() entity.Timeframe {
	tf, err := entity.ParseTimeframe(c.Timeframe)
	if err != nil {
		return entity.OneDay
	}
	return tf
}

// DefaultSymbols returns the normalized, de-duplicated COLLECT_SYMBOLS.
func (c CollectConfig) DefaultSymbols() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		n := entity.NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ToRetry converts to the retry package's Config. Rate limits and provider errors are retryable.
func (r RetryConfig) ToRetry() retry.Config {
	return retry.Config{
		MaxRetries:      r.MaxRetries,
		BaseDelay:       r.BaseDelay,
		MaxDelay:        r.MaxDelay,
		ExponentialBase: r.ExponentialBase,
		RetryableKinds:  []retry.Kind{retry.KindRateLimited, retry.KindProvider},
	}
}

// Options converts to the provider registry's Options.
func (p ProviderConfig) Options(userAgent string) externalapi.Options {
	return externalapi.Options{
		APIKey:             p.APIKey,
		BaseURL:            p.BaseURL,
		Timeout:            p.Timeout,
		RateLimitPerMinute: p.RateLimitPerMinute,
		UserAgent:          userAgent,
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
