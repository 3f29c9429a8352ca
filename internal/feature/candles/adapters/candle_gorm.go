// Package adapters implements candle persistence on top of gorm.
package adapters

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"market_sync/internal/feature/candles/domain"
	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/feature/candles/usecase"
)

type candleGorm struct {
	db *gorm.DB
}

var (
	_ usecase.CandleRepository = (*candleGorm)(nil)
	_ usecase.CandleReader     = (*candleGorm)(nil)
)

// NewCandleRepository はgormベースのローソク足リポジトリを生成します。
func NewCandleRepository(db *gorm.DB) *candleGorm {
	return &candleGorm{db: db}
}

// CandleModel is the candles table. A row is identified by (symbol, timeframe, provider, ts).
type CandleModel struct {
	ID        uint      `gorm:"primaryKey"`
	Symbol    string    `gorm:"size:32;not null;uniqueIndex:candle_series_ts,priority:1"`
	Timeframe string    `gorm:"size:8;not null;uniqueIndex:candle_series_ts,priority:2"`
	Provider  string    `gorm:"size:32;not null;uniqueIndex:candle_series_ts,priority:3"`
	Timestamp time.Time `gorm:"column:ts;not null;uniqueIndex:candle_series_ts,priority:4"`

	Open        decimal.Decimal `gorm:"type:decimal(38,18);not null"`
	High        decimal.Decimal `gorm:"type:decimal(38,18);not null"`
	Low         decimal.Decimal `gorm:"type:decimal(38,18);not null"`
	Close       decimal.Decimal `gorm:"type:decimal(38,18);not null"`
	Volume      decimal.Decimal `gorm:"type:decimal(38,18);not null;default:0"`
	CollectedAt time.Time       `gorm:"not null"`
}

func (CandleModel) TableName() string {
	return "candles"
}

func toModel(e entity.Candle) CandleModel {
	return CandleModel{
		Symbol:      e.Symbol,
		Timeframe:   string(e.Timeframe),
		Provider:    e.Provider,
		Timestamp:   e.Timestamp.UTC(),
		Open:        e.Open,
		High:        e.High,
		Low:         e.Low,
		Close:       e.Close,
		Volume:      e.Volume,
		CollectedAt: e.CollectedAt.UTC(),
	}
}

func toEntity(m CandleModel) entity.Candle {
	return entity.Candle{
		Symbol:      m.Symbol,
		Timeframe:   entity.Timeframe(m.Timeframe),
		Provider:    m.Provider,
		Timestamp:   m.Timestamp.UTC(),
		Open:        m.Open,
		High:        m.High,
		Low:         m.Low,
		Close:       m.Close,
		Volume:      m.Volume,
		CollectedAt: m.CollectedAt.UTC(),
	}
}

// InsertMarketData は重複（同一シリーズ・同一時刻）をスキップしてローソク足を挿入し、
// 実際に挿入された件数を返します。チャンクごとに個別のトランザクションでコミットします。
func (r *candleGorm) InsertMarketData(ctx context.Context, candles []entity.Candle, batchSize int) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = len(candles)
	}

	inserted := 0
	for start := 0; start < len(candles); start += batchSize {
		end := min(start+batchSize, len(candles))

		ms := make([]CandleModel, 0, end-start)
		for _, e := range candles[start:end] {
			ms = append(ms, toModel(e))
		}

		var n int64
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "provider"}, {Name: "ts"}},
				DoNothing: true,
			}).Create(&ms)
			n = res.RowsAffected
			return res.Error
		})
		if err != nil {
			return inserted, &domain.StorageError{Op: "insert", Err: err}
		}
		inserted += int(n)
	}
	return inserted, nil
}

// LatestTimestamp returns the newest stored bucket for a series.
func (r *candleGorm) LatestTimestamp(ctx context.Context, symbol string, tf entity.Timeframe, provider string) (time.Time, bool, error) {
	var rows []CandleModel
	err := r.db.WithContext(ctx).
		Select("ts").
		Where("symbol = ? AND timeframe = ? AND provider = ?", symbol, string(tf), provider).
		Order("ts DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return time.Time{}, false, &domain.StorageError{Op: "latest timestamp", Err: err}
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].Timestamp.UTC(), true, nil
}

// ListTimestamps returns the stored buckets of a series within [start, end], ascending.
func (r *candleGorm) ListTimestamps(ctx context.Context, symbol string, tf entity.Timeframe, provider string, start, end time.Time) ([]time.Time, error) {
	var rows []CandleModel
	err := r.db.WithContext(ctx).
		Select("ts").
		Where("symbol = ? AND timeframe = ? AND provider = ?", symbol, string(tf), provider).
		Where("ts >= ? AND ts <= ?", start.UTC(), end.UTC()).
		Order("ts ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &domain.StorageError{Op: "list timestamps", Err: err}
	}
	out := make([]time.Time, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.Timestamp.UTC())
	}
	return out, nil
}

// Find はローソク足を新しい順に取得します。limit <= 0 の場合は全件を返します。
func (r *candleGorm) Find(ctx context.Context, symbol string, tf entity.Timeframe, provider string, limit int) ([]entity.Candle, error) {
	var rows []CandleModel
	q := r.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND provider = ?", symbol, string(tf), provider).
		Order("ts DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, &domain.StorageError{Op: "find", Err: err}
	}
	out := make([]entity.Candle, 0, len(rows))
	for _, m := range rows {
		out = append(out, toEntity(m))
	}
	return out, nil
}
