// Package usecase implements candle synchronisation: incremental collection, gap detection and backfill.
package usecase

import (
	"context"
	"time"

	"market_sync/internal/feature/candles/domain/entity"
)

// MarketProvider は上流ソースからOHLCVを取得します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketProvider interface {
	// FetchOHLCV は[start, end]の観測値を昇順で返します。
	// start/endがゼロ値の場合はプロバイダに任せ、limitが0以下なら上限なしです。
	FetchOHLCV(ctx context.Context, symbol string, tf entity.Timeframe, start, end time.Time, limit int) ([]entity.OHLCV, error)
}

// CandleRepository は追記専用で冪等なローソク足ストアです。
type CandleRepository interface {
	// LatestTimestamp は最新の保存済み時刻を返します。未保存ならokはfalseです。
	LatestTimestamp(ctx context.Context, symbol string, tf entity.Timeframe, provider string) (ts time.Time, ok bool, err error)
	// ListTimestamps は[start, end]の保存済み時刻をUTC・昇順で返します。
	ListTimestamps(ctx context.Context, symbol string, tf entity.Timeframe, provider string, start, end time.Time) ([]time.Time, error)
	// InsertMarketData は重複をスキップしながらbatchSize単位で保存し、実際に挿入した件数を返します。
	InsertMarketData(ctx context.Context, candles []entity.Candle, batchSize int) (int, error)
}

// CandleReader はHTTP APIが使う読み取り側のポートです。
type CandleReader interface {
	// Find は新しい順に最大limit件を返します。limitが0以下なら全件です。
	Find(ctx context.Context, symbol string, tf entity.Timeframe, provider string, limit int) ([]entity.Candle, error)
}

const day = 24 * time.Hour

func lookback(days int) time.Duration {
	return time.Duration(days) * day
}
