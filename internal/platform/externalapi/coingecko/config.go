// Package coingecko provides a client for the CoinGecko public market data API.
package coingecko

import (
	"os"
	"time"
)

// DefaultBaseURL is the public (keyless) CoinGecko endpoint.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Config holds configuration for the CoinGecko API client.
type Config struct {
	APIKey     string        // Optional pro API key, sent as x-cg-pro-api-key
	BaseURL    string        // Base URL for the API (e.g., "https://api.coingecko.com/api/v3")
	Timeout    time.Duration // HTTP request timeout
	VsCurrency string        // Quote currency; prices are treated as USD-equivalent
}

// LoadConfig loads CoinGecko configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		APIKey:     os.Getenv("COINGECKO_API_KEY"),
		BaseURL:    os.Getenv("COINGECKO_BASE_URL"),
		Timeout:    30 * time.Second,
		VsCurrency: "usd",
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.VsCurrency == "" {
		c.VsCurrency = "usd"
	}
	return c
}
