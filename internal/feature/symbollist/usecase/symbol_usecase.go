// Package usecase implements the business logic for the collection watch list.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"market_sync/internal/feature/candles/domain"
	candleentity "market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/feature/symbollist/domain/entity"
)

// ErrSymbolNotFound is returned when removing a code that is not on the watch list.
var ErrSymbolNotFound = errors.New("symbol not found")

// SymbolRepository abstracts the persistence layer for the watch list.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type SymbolRepository interface {
	ListActive(ctx context.Context) ([]entity.Symbol, error)
	ListActiveCodes(ctx context.Context) ([]string, error)
	MaxSortKey(ctx context.Context) (int, error)
	Upsert(ctx context.Context, s *entity.Symbol) error
	Deactivate(ctx context.Context, code string) (bool, error)
}

// SymbolValidator checks that the market data provider knows a symbol.
type SymbolValidator interface {
	ValidateSymbol(ctx context.Context, symbol string) (bool, error)
}

// SymbolUsecase provides business logic for symbol operations.
type SymbolUsecase struct {
	repo      SymbolRepository
	validator SymbolValidator
	provider  string
}

// NewSymbolUsecase creates a new SymbolUsecase. validator may be nil for read-only use.
func NewSymbolUsecase(r SymbolRepository, validator SymbolValidator, provider string) *SymbolUsecase {
	return &SymbolUsecase{repo: r, validator: validator, provider: provider}
}

// ListActiveSymbols returns all active symbols from the repository.
func (u *SymbolUsecase) ListActiveSymbols(ctx context.Context) ([]entity.Symbol, error) {
	return u.repo.ListActive(ctx)
}

// ActiveCodes returns the active codes in watch-list order.
func (u *SymbolUsecase) ActiveCodes(ctx context.Context) ([]string, error) {
	return u.repo.ListActiveCodes(ctx)
}

// AddSymbols validates every code against the provider and adds the valid ones to the watch list.
// Nothing is stored if any code is rejected.
func (u *SymbolUsecase) AddSymbols(ctx context.Context, codes []string) ([]entity.Symbol, error) {
	if u.validator == nil {
		return nil, errors.New("no symbol validator configured")
	}

	normalized := make([]string, 0, len(codes))
	seen := map[string]struct{}{}
	for _, c := range codes {
		code := candleentity.NormalizeSymbol(c)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}

		ok, err := u.validator.ValidateSymbol(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %w", code, err)
		}
		if !ok {
			return nil, &domain.InvalidSymbolError{Symbol: code, Provider: u.provider}
		}
		normalized = append(normalized, code)
	}

	sortKey, err := u.repo.MaxSortKey(ctx)
	if err != nil {
		return nil, err
	}

	added := make([]entity.Symbol, 0, len(normalized))
	for _, code := range normalized {
		sortKey++
		s := entity.Symbol{Code: code, Name: code, Provider: u.provider, IsActive: true, SortKey: sortKey}
		if err := u.repo.Upsert(ctx, &s); err != nil {
			return added, fmt.Errorf("store %s: %w", code, err)
		}
		slog.Info("symbol added to watch list", "symbol", code, "provider", u.provider)
		added = append(added, s)
	}
	return added, nil
}

// RemoveSymbol takes a code off the watch list. Stored candles are kept.
func (u *SymbolUsecase) RemoveSymbol(ctx context.Context, code string) error {
	code = candleentity.NormalizeSymbol(code)
	ok, err := u.repo.Deactivate(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, code)
	}
	return nil
}
