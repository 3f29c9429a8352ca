package di

import (
	"context"
	"fmt"
	"log/slog"

	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	candleadapters "market_sync/internal/feature/candles/adapters"
	candlehandler "market_sync/internal/feature/candles/transport/handler"
	candleusecase "market_sync/internal/feature/candles/usecase"
	symboladapters "market_sync/internal/feature/symbollist/adapters"
	symbolhandler "market_sync/internal/feature/symbollist/transport/handler"
	symbolusecase "market_sync/internal/feature/symbollist/usecase"
	"market_sync/internal/platform/cache"
	"market_sync/internal/platform/config"
	"market_sync/internal/platform/db"
	"market_sync/internal/platform/externalapi"
	platformhandler "market_sync/internal/platform/http/handler"
	infraredis "market_sync/internal/platform/redis"
)

// App is the wired object graph shared by cmd/server and cmd/ingest.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *gorm.DB
	Redis    *redisv9.Client // nil when the cache is disabled or unreachable
	Provider externalapi.Provider

	Candles   cache.CandleStore
	Collector *candleusecase.TimeSeriesCollector
	GapFiller *candleusecase.GapFiller
	Symbols   *symbolusecase.SymbolUsecase
}

// Build opens storage, connects the optional cache and wires the usecases.
// The returned cleanup closes every opened connection.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	provider, err := NewProvider(cfg.Provider, cfg.App.Name)
	if err != nil {
		return nil, nil, err
	}

	// db
	gdb, err := db.Open(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanups := []func(){func() {
		if sqlDB, err := gdb.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}
	}}

	// Redis
	var rdb *redisv9.Client
	if cfg.Redis.Enabled {
		if tmp, err := infraredis.NewRedisClient(ctx, cfg.Redis.Conn); err != nil {
			logger.Warn("Redis unavailable. Running without cache.", "error", err)
		} else {
			rdb = tmp
			cleanups = append(cleanups, func() {
				if err := rdb.Close(); err != nil {
					logger.Error("failed to close Redis client", "error", err)
				}
			})
		}
	}

	// Repository（Redisキャッシュでラップ。rdbがnilの場合はそのまま委譲）
	candleRepo := candleadapters.NewCandleRepository(gdb)
	cachedCandleRepo := cache.NewCachingCandleRepository(rdb, cfg.Redis.CacheTTL, candleRepo, "candles")
	symbolRepo := symboladapters.NewSymbolRepository(gdb)

	// Usecase
	policy := NewRetryPolicy(cfg.Retry, logger)
	providerName := provider.Info().Name

	app := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       gdb,
		Redis:    rdb,
		Provider: provider,
		Candles:  cachedCandleRepo,
		Collector: candleusecase.NewTimeSeriesCollector(provider, cachedCandleRepo, policy, candleusecase.CollectorConfig{
			ProviderName: providerName,
			BatchSize:    cfg.Collect.BatchSize,
			Logger:       logger,
		}),
		GapFiller: candleusecase.NewGapFiller(provider, cachedCandleRepo, policy, candleusecase.GapFillerConfig{
			ProviderName: providerName,
			BatchSize:    cfg.Collect.BatchSize,
			Slack:        cfg.Collect.GapSlack,
			Logger:       logger,
		}),
		Symbols: symbolusecase.NewSymbolUsecase(symbolRepo, provider, providerName),
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return app, cleanup, nil
}

// Handlers builds the HTTP handlers for cmd/server.
func (a *App) Handlers() (*candlehandler.CandlesHandler, *symbolhandler.SymbolHandler, *platformhandler.Readiness) {
	candlesUC := candleusecase.NewCandlesUsecase(a.Candles, a.Provider.Info().Name)
	candles := candlehandler.NewCandlesHandler(candlesUC, a.GapFiller, a.Config.Collect.RetentionDays)
	symbols := symbolhandler.NewSymbolHandler(a.Symbols)

	checks := map[string]platformhandler.Check{
		"db": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return candles, symbols, platformhandler.NewReadiness(0, checks)
}
