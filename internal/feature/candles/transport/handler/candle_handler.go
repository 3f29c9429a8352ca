// Package handler はcandlesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"market_sync/internal/feature/candles/domain"
	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/feature/candles/transport/http/dto"
)

// CandlesUsecase はローソク足データ操作のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type CandlesUsecase interface {
	GetCandles(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error)
}

// GapDetector は保存済みシリーズの欠損を検出します。
type GapDetector interface {
	DetectGaps(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error)
}

// CandlesHandler はローソク足データのHTTPリクエストを処理します。
type CandlesHandler struct {
	uc           CandlesUsecase
	gaps         GapDetector
	lookbackDays int
}

// NewCandlesHandler は指定されたusecaseでCandlesHandlerの新しいインスタンスを生成します。
// lookbackDaysは /gaps でdaysが未指定の場合の既定値です。
func NewCandlesHandler(uc CandlesUsecase, gaps GapDetector, lookbackDays int) *CandlesHandler {
	return &CandlesHandler{uc: uc, gaps: gaps, lookbackDays: lookbackDays}
}

// GetCandlesHandler は銘柄コードと時間足を受け取り、保存済みのローソク足データを新しい順にJSONで返します。
//
// エンドポイント例:
// GET /candles/:symbol?timeframe=1d&outputsize=200
func (h *CandlesHandler) GetCandlesHandler(c *gin.Context) {
	symbol := c.Param("symbol")
	// 未指定の場合はusecase側のデフォルト値を使用
	tf := entity.Timeframe(c.Query("timeframe"))
	// 文字列を整数に変換（不正な値は0としてusecaseに任せる）
	outputsize, _ := strconv.Atoi(c.Query("outputsize"))

	candles, err := h.uc.GetCandles(c.Request.Context(), symbol, tf, outputsize)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	// データをフォーマット
	out := make([]dto.CandleResponse, 0, len(candles))
	for _, x := range candles {
		out = append(out, dto.CandleResponse{
			Time:   formatTime(x.Timestamp),
			Open:   x.Open,
			High:   x.High,
			Low:    x.Low,
			Close:  x.Close,
			Volume: x.Volume,
		})
	}

	c.JSON(http.StatusOK, out)
}

// GetGapsHandler は直近days日分の保存済みシリーズの欠損を返します。
//
// エンドポイント例:
// GET /gaps/:symbol?timeframe=1h&days=7
func (h *CandlesHandler) GetGapsHandler(c *gin.Context) {
	tf, err := entity.ParseTimeframe(c.DefaultQuery("timeframe", string(entity.OneDay)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	days := h.lookbackDays
	if s := c.Query("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}

	res, err := h.gaps.DetectGaps(c.Request.Context(), c.Param("symbol"), tf, days)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	gaps := make([]dto.GapResponse, 0, len(res.Gaps))
	for _, g := range res.Gaps {
		gaps = append(gaps, dto.GapResponse{
			Start:          formatTime(g.Start),
			End:            formatTime(g.End),
			MissingCandles: g.MissingCandles,
		})
	}
	c.JSON(http.StatusOK, dto.GapCheckResponse{
		Symbol:      res.Symbol,
		Timeframe:   string(res.Timeframe),
		CheckedFrom: formatTime(res.CheckedFrom),
		CheckedTo:   formatTime(res.CheckedTo),
		IssuesFound: res.IssuesFound(),
		Gaps:        gaps,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownTimeframe):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidSymbol):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
