// Package router wires HTTP routes to handlers.
package router

import (
	"github.com/gin-gonic/gin"

	candleshandler "market_sync/internal/feature/candles/transport/handler"
	symbollisthandler "market_sync/internal/feature/symbollist/transport/handler"
	platformhandler "market_sync/internal/platform/http/handler"
)

func NewRouter(candles *candleshandler.CandlesHandler, symbol *symbollisthandler.SymbolHandler,
	ready *platformhandler.Readiness) *gin.Engine {
	r := gin.Default()

	// 導通確認用
	r.GET("/healthz", platformhandler.Health)
	r.HEAD("/healthz", platformhandler.Health)
	// 依存先（DB, Redis）の疎通確認
	r.GET("/readyz", ready.Ready)

	// 保存済みデータの参照
	r.GET("/candles/:symbol", candles.GetCandlesHandler)
	r.GET("/gaps/:symbol", candles.GetGapsHandler)

	// 監視対象銘柄の管理
	r.GET("/symbols", symbol.List)
	r.POST("/symbols", symbol.Add)
	r.DELETE("/symbols/:code", symbol.Remove)

	return r
}
