package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/shared/retry"
)

// DefaultBatchSize は設定がない場合の挿入チャンクサイズです。
const DefaultBatchSize = 100

// CollectorConfig はTimeSeriesCollectorの設定です。
type CollectorConfig struct {
	ProviderName string           // 保存する足に記録し、検索にも使う
	BatchSize    int              // 挿入チャンクサイズ（0以下はDefaultBatchSize）
	Now          func() time.Time // 時計（nilはtime.Now）
	Logger       *slog.Logger     // nilはslog.Default()
}

// TimeSeriesCollector は各銘柄の保存済みシリーズをプロバイダの最新状態まで更新します。
type TimeSeriesCollector struct {
	market  MarketProvider
	candles CandleRepository
	retrier *retry.Policy
	cfg     CollectorConfig
}

// NewTimeSeriesCollector は新しいTimeSeriesCollectorを作成します。
func NewTimeSeriesCollector(market MarketProvider, candles CandleRepository, retrier *retry.Policy, cfg CollectorConfig) *TimeSeriesCollector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TimeSeriesCollector{market: market, candles: candles, retrier: retrier, cfg: cfg}
}

// Collect は銘柄を1つずつ順番に処理します。
//
// 最初のエラーで実行を中断します。完了済みの銘柄の結果はエラーとともに返し、
// コミット済みのバッチはそのまま残ります。以降の銘柄は処理しません。
func (c *TimeSeriesCollector) Collect(ctx context.Context, symbols []string, tf entity.Timeframe, lookbackDays int, updateAll, dryRun bool) ([]entity.CollectionResult, error) {
	interval, err := tf.Interval()
	if err != nil {
		return nil, err
	}

	now := c.cfg.Now().UTC()
	log := c.cfg.Logger.With("run_id", uuid.NewString(), "provider", c.cfg.ProviderName, "timeframe", tf)

	results := make([]entity.CollectionResult, 0, len(symbols))
	for _, raw := range symbols {
		symbol := entity.NormalizeSymbol(raw)
		res, err := c.collectOne(ctx, log.With("symbol", symbol), symbol, tf, interval, now, lookbackDays, updateAll, dryRun)
		if err != nil {
			log.Error("collection failed, aborting run", "symbol", symbol, "completed", len(results), "error", err)
			return results, fmt.Errorf("collect %s: %w", symbol, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (c *TimeSeriesCollector) collectOne(ctx context.Context, log *slog.Logger, symbol string, tf entity.Timeframe, interval time.Duration,
	now time.Time, lookbackDays int, updateAll, dryRun bool) (entity.CollectionResult, error) {
	res := entity.CollectionResult{Symbol: symbol, Timeframe: tf}

	log.Info("collecting candles", "lookback_days", lookbackDays, "update_all", updateAll, "dry_run", dryRun)

	last, ok, err := c.candles.LatestTimestamp(ctx, symbol, tf, c.cfg.ProviderName)
	if err != nil {
		return res, err
	}

	start := FetchStart(now, last, ok, interval, lookbackDays, updateAll)
	if !start.Before(now) {
		log.Info("series up to date, nothing to fetch", "latest", last)
		return res, nil
	}

	ohlcv, err := retry.Do(ctx, c.retrier, func(ctx context.Context) ([]entity.OHLCV, error) {
		return c.market.FetchOHLCV(ctx, symbol, tf, start, now, 0)
	})
	if err != nil {
		return res, err
	}
	if len(ohlcv) == 0 {
		log.Warn("provider returned no candles", "start", start, "end", now)
		return res, nil
	}
	res.CandlesFetched = len(ohlcv)

	records, err := toCandles(symbol, tf, c.cfg.ProviderName, ohlcv, c.cfg.Now())
	if err != nil {
		return res, err
	}

	if dryRun {
		log.Info("dry run, skipping insert", "fetched", res.CandlesFetched)
	} else {
		inserted, err := c.candles.InsertMarketData(ctx, records, c.cfg.BatchSize)
		if err != nil {
			return res, err
		}
		res.CandlesInserted = inserted
		log.Info("inserted candles", "inserted", inserted, "fetched", res.CandlesFetched)
	}

	first, lastFetched := records[0].Timestamp, records[len(records)-1].Timestamp
	res.WindowStart, res.WindowEnd = &first, &lastFetched
	return res, nil
}

// FetchStart はシリーズの次の取得開始時刻を計算します。
//
// 保存データがなければ now - lookback。updateAll の場合は lookback に関係なく最新の保存済み足の
// 次のバケット。それ以外はその2つのうち遅い方です。
func FetchStart(now, lastStored time.Time, hasStored bool, interval time.Duration, lookbackDays int, updateAll bool) time.Time {
	windowStart := now.Add(-lookback(lookbackDays))
	if !hasStored {
		return windowStart
	}
	next := lastStored.Add(interval)
	if updateAll || next.After(windowStart) {
		return next
	}
	return windowStart
}

// toCandles はプロバイダの観測値をシリーズに紐付けて検証します。
func toCandles(symbol string, tf entity.Timeframe, provider string, ohlcv []entity.OHLCV, collectedAt time.Time) ([]entity.Candle, error) {
	out := make([]entity.Candle, 0, len(ohlcv))
	for _, o := range ohlcv {
		c := entity.NewCandle(symbol, tf, provider, o, collectedAt)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("candle at %s: %w", c.Timestamp.Format(time.RFC3339), err)
		}
		out = append(out, c)
	}
	return out, nil
}
