// Package adapters はsymbollistフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"market_sync/internal/feature/symbollist/domain/entity"
	"market_sync/internal/feature/symbollist/usecase"
)

// symbolGorm はSymbolRepositoryインターフェースのgorm実装です。
type symbolGorm struct {
	db *gorm.DB
}

var _ usecase.SymbolRepository = (*symbolGorm)(nil)

// NewSymbolRepository は指定されたDB接続でsymbolGormリポジトリの新しいインスタンスを生成します。
func NewSymbolRepository(db *gorm.DB) *symbolGorm {
	return &symbolGorm{db: db}
}

// ListActive はsort_key順にすべてのアクティブな銘柄を返します。
func (r *symbolGorm) ListActive(ctx context.Context) ([]entity.Symbol, error) {
	var symbols []entity.Symbol
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_key ASC").
		Find(&symbols).Error; err != nil {
		return nil, err
	}
	return symbols, nil
}

// ListActiveCodes はsort_key順にアクティブな銘柄のコードのみを返します。
func (r *symbolGorm) ListActiveCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Where("is_active = ?", true).
		Order("sort_key ASC").
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// MaxSortKey は登録済み銘柄（非アクティブを含む）の最大sort_keyを返します。銘柄がない場合は0です。
func (r *symbolGorm) MaxSortKey(ctx context.Context) (int, error) {
	var rows []entity.Symbol
	if err := r.db.WithContext(ctx).
		Order("sort_key DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].SortKey, nil
}

// Upsert はcodeをキーに銘柄を登録します。既存の銘柄は再度アクティブ化され、
// sort_keyは維持されます。
func (r *symbolGorm) Upsert(ctx context.Context, s *entity.Symbol) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.Assignments(map[string]any{"name": s.Name, "provider": s.Provider, "is_active": true}),
	}).Create(s).Error
}

// Deactivate は銘柄を監視対象から外します。該当がない場合はfalseを返します。
func (r *symbolGorm) Deactivate(ctx context.Context, code string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Where("code = ?", code).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
