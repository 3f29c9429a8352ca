package usecase

import (
	"context"
	"log/slog"
	"time"

	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/shared/retry"
)

// DefaultGapSlack は差分をギャップとみなす前にintervalへ加える許容幅です。
const DefaultGapSlack = time.Second

// GapFillerConfig はGapFillerの設定です。
type GapFillerConfig struct {
	ProviderName string
	BatchSize    int           // <= 0 uses DefaultBatchSize
	Slack        time.Duration // <= 0 uses DefaultGapSlack
	Now          func() time.Time
	Logger       *slog.Logger
}

// GapFiller は保存済みシリーズの欠損を検出し、プロバイダから補完します。
type GapFiller struct {
	market  MarketProvider
	candles CandleRepository
	retrier *retry.Policy
	cfg     GapFillerConfig
}

// NewGapFiller は新しいGapFillerを作成します。
func NewGapFiller(market MarketProvider, candles CandleRepository, retrier *retry.Policy, cfg GapFillerConfig) *GapFiller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Slack <= 0 {
		cfg.Slack = DefaultGapSlack
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GapFiller{market: market, candles: candles, retrier: retrier, cfg: cfg}
}

// DetectGaps は直近lookbackDays日の保存済みタイムスタンプを走査し、欠損バケットを検出します。
func (g *GapFiller) DetectGaps(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error) {
	symbol = entity.NormalizeSymbol(symbol)
	now := g.cfg.Now().UTC()
	res := entity.GapCheckResult{
		Symbol:      symbol,
		Timeframe:   tf,
		CheckedFrom: now.Add(-lookback(lookbackDays)),
		CheckedTo:   now,
	}

	interval, err := tf.Interval()
	if err != nil {
		return res, err
	}

	ts, err := g.candles.ListTimestamps(ctx, symbol, tf, g.cfg.ProviderName, res.CheckedFrom, res.CheckedTo)
	if err != nil {
		return res, err
	}
	res.Gaps = FindGaps(ts, interval, g.cfg.Slack)

	g.cfg.Logger.Info("gap check finished",
		"symbol", symbol,
		"timeframe", tf,
		"candles", len(ts),
		"gaps", len(res.Gaps),
		"missing", res.IssuesFound(),
	)
	return res, nil
}

// FindGaps は昇順のタイムスタンプ間で連続する欠損バケットを返します。
// 差分がinterval+slackを超えた場合のみ対象とし、報告するギャップは必ず1本以上の欠損を含みます。
func FindGaps(ts []time.Time, interval, slack time.Duration) []entity.Gap {
	if len(ts) < 2 || interval <= 0 {
		return nil
	}
	var gaps []entity.Gap
	for i := 1; i < len(ts); i++ {
		prev, cur := ts[i-1], ts[i]
		delta := cur.Sub(prev)
		if delta <= interval+slack {
			continue
		}
		missing := int(delta/interval) - 1
		if missing <= 0 {
			continue
		}
		gaps = append(gaps, entity.Gap{
			Start:          prev.Add(interval),
			End:            cur.Add(-interval),
			MissingCandles: missing,
		})
	}
	return gaps
}

// FillGaps はギャップを検出し、ギャップごとに独立して補完します。
//
// 1つのギャップの失敗はログに記録し、次のギャップの補完を続けます。エラーとして返すのは
// 検出の失敗と、ctxの中断（それまでの挿入件数とともに返す）だけです。戻り値のintは実際に挿入された行数です。
func (g *GapFiller) FillGaps(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int, dryRun bool) (entity.GapCheckResult, int, error) {
	res, err := g.DetectGaps(ctx, symbol, tf, lookbackDays)
	if err != nil {
		return res, 0, err
	}
	if len(res.Gaps) == 0 {
		return res, 0, nil
	}
	if dryRun {
		g.cfg.Logger.Info("dry run, not filling gaps", "symbol", res.Symbol, "gaps", len(res.Gaps), "missing", res.IssuesFound())
		return res, 0, nil
	}

	interval, _ := tf.Interval()
	total := 0
	for _, gap := range res.Gaps {
		if err := ctx.Err(); err != nil {
			g.cfg.Logger.Warn("gap fill interrupted", "symbol", res.Symbol, "inserted", total, "error", err)
			return res, total, err
		}
		n, err := g.fillOne(ctx, res.Symbol, tf, interval, gap)
		if err != nil {
			g.cfg.Logger.Error("failed to fill gap",
				"symbol", res.Symbol,
				"gap_start", gap.Start,
				"gap_end", gap.End,
				"error", err,
			)
			continue
		}
		total += n
	}

	g.cfg.Logger.Info("gap fill finished", "symbol", res.Symbol, "gaps", len(res.Gaps), "inserted", total)
	return res, total, nil
}

func (g *GapFiller) fillOne(ctx context.Context, symbol string, tf entity.Timeframe, interval time.Duration, gap entity.Gap) (int, error) {
	start, end := gap.Start.Add(-interval), gap.End.Add(interval)

	ohlcv, err := retry.Do(ctx, g.retrier, func(ctx context.Context) ([]entity.OHLCV, error) {
		return g.market.FetchOHLCV(ctx, symbol, tf, start, end, 0)
	})
	if err != nil {
		return 0, err
	}
	if len(ohlcv) == 0 {
		g.cfg.Logger.Warn("provider returned no candles for gap", "symbol", symbol, "gap_start", gap.Start, "gap_end", gap.End)
		return 0, nil
	}

	records, err := toCandles(symbol, tf, g.cfg.ProviderName, ohlcv, g.cfg.Now())
	if err != nil {
		return 0, err
	}
	return g.candles.InsertMarketData(ctx, records, g.cfg.BatchSize)
}
