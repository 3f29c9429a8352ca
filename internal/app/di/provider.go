// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"
	"log/slog"

	"market_sync/internal/platform/config"
	"market_sync/internal/platform/externalapi"
	"market_sync/internal/shared/retry"
)

// NewProvider creates the configured market data provider with a paced HTTP client.
func NewProvider(cfg config.ProviderConfig, appName string) (externalapi.Provider, error) {
	p, err := externalapi.New(cfg.Name, cfg.Options(appName+"/1.0"))
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	return p, nil
}

// NewRetryPolicy creates the retry policy shared by the collector and the gap filler.
func NewRetryPolicy(cfg config.RetryConfig, logger *slog.Logger) *retry.Policy {
	return retry.NewPolicy(cfg.ToRetry(), retry.WithLogger(logger))
}
