package usecase

import (
	"context"

	"market_sync/internal/feature/candles/domain/entity"
)

const (
	// DefaultTimeframe はローソク足クエリのデフォルト時間足です。
	DefaultTimeframe = entity.OneDay
	// DefaultOutputSize はデフォルトのローソク足返却件数です。
	DefaultOutputSize = 200
	// MaxOutputSize はローソク足の最大返却件数です。
	MaxOutputSize = 5000
)

// candlesUsecase は保存済みローソク足の読み取りユースケースです。
type candlesUsecase struct {
	candle   CandleReader
	provider string
}

// NewCandlesUsecase はcandlesUsecaseの新しいインスタンスを生成します。
// provider は参照するデータソース名です。
func NewCandlesUsecase(candle CandleReader, provider string) *candlesUsecase {
	return &candlesUsecase{candle: candle, provider: provider}
}

// GetCandles は指定された銘柄と時間足のローソク足を新しい順に取得します。
func (cu *candlesUsecase) GetCandles(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error) {
	if tf == "" {
		tf = DefaultTimeframe
	}
	if _, err := tf.Interval(); err != nil {
		return nil, err
	}
	if outputsize <= 0 || outputsize > MaxOutputSize {
		outputsize = DefaultOutputSize
	}

	cs, err := cu.candle.Find(ctx, entity.NormalizeSymbol(symbol), tf, cu.provider, outputsize)
	if err != nil {
		return nil, err
	}

	return cs, nil
}
