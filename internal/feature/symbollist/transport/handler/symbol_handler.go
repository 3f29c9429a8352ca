// Package handler exposes the watch list over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"market_sync/internal/feature/candles/domain"
	"market_sync/internal/feature/symbollist/domain/entity"
	"market_sync/internal/feature/symbollist/transport/http/dto"
	"market_sync/internal/feature/symbollist/usecase"
)

// SymbolUsecase は銘柄リストに関するユースケースのインターフェースです。
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type SymbolUsecase interface {
	ListActiveSymbols(ctx context.Context) ([]entity.Symbol, error)
	AddSymbols(ctx context.Context, codes []string) ([]entity.Symbol, error)
	RemoveSymbol(ctx context.Context, code string) error
}

// SymbolHandler は銘柄リストに関するHTTPリクエストを処理します。
type SymbolHandler struct {
	uc SymbolUsecase
}

// NewSymbolHandler は新しい SymbolHandler を作成します。
func NewSymbolHandler(uc SymbolUsecase) *SymbolHandler {
	return &SymbolHandler{uc: uc}
}

// List は監視対象の銘柄一覧を返します。
func (h *SymbolHandler) List(c *gin.Context) {
	symbols, err := h.uc.ListActiveSymbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toItems(symbols))
}

// Add はプロバイダで検証した銘柄を監視対象に追加します。
// 未知の銘柄が含まれる場合は422を返し、何も登録しません。
func (h *SymbolHandler) Add(c *gin.Context) {
	var req dto.AddSymbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.uc.AddSymbols(c.Request.Context(), req.Codes)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSymbol) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toItems(added))
}

// Remove は銘柄を監視対象から外します。
func (h *SymbolHandler) Remove(c *gin.Context) {
	err := h.uc.RemoveSymbol(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, usecase.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func toItems(symbols []entity.Symbol) []dto.SymbolItem {
	out := make([]dto.SymbolItem, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, dto.SymbolItem{Code: s.Code, Name: s.Name, Provider: s.Provider})
	}
	return out
}
