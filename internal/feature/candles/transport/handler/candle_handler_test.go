package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"market_sync/internal/feature/candles/domain"
	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/feature/candles/transport/handler"
)

// mockCandlesUsecase はCandlesUsecaseインターフェースのモック実装です。
type mockCandlesUsecase struct {
	GetCandlesFunc func(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error)
}

func (m *mockCandlesUsecase) GetCandles(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error) {
	return m.GetCandlesFunc(ctx, symbol, tf, outputsize)
}

// mockGapDetector はGapDetectorインターフェースのモック実装です。
type mockGapDetector struct {
	DetectGapsFunc func(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error)
}

func (m *mockGapDetector) DetectGaps(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error) {
	return m.DetectGapsFunc(ctx, symbol, tf, lookbackDays)
}

func newRouter(uc handler.CandlesUsecase, gaps handler.GapDetector) *gin.Engine {
	h := handler.NewCandlesHandler(uc, gaps, 30)
	r := gin.New()
	r.GET("/candles/:symbol", h.GetCandlesHandler)
	r.GET("/gaps/:symbol", h.GetGapsHandler)
	return r
}

// TestCandlesHandler_GetCandlesHandler はGetCandlesHandlerのHTTPリクエスト/レスポンス処理をテストします。
func TestCandlesHandler_GetCandlesHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// テスト用の固定時刻
	testTime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		url            string
		mockGetCandles func(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error)
		expectedStatus int
		expectedBody   string // JSON文字列として比較
	}{
		{
			name: "success: all parameters specified",
			url:  "/candles/BTC?timeframe=1d&outputsize=10",
			mockGetCandles: func(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error) {
				assert.Equal(t, "BTC", symbol)
				assert.Equal(t, entity.OneDay, tf)
				assert.Equal(t, 10, outputsize)
				return []entity.Candle{{
					Symbol: "BTC", Timeframe: entity.OneDay, Provider: "coingecko", Timestamp: testTime,
					Open: decimal.NewFromInt(100), High: decimal.NewFromInt(110), Low: decimal.NewFromInt(90),
					Close: decimal.RequireFromString("105.5"), Volume: decimal.NewFromInt(1000),
				}}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[{"time":"2023-01-01T00:00:00Z","open":"100","high":"110","low":"90","close":"105.5","volume":"1000"}]`,
		},
		{
			name: "success: parameters omitted are passed as zero values",
			url:  "/candles/ETH",
			mockGetCandles: func(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error) {
				assert.Equal(t, "ETH", symbol)
				// デフォルト値への変換はusecaseレイヤーで処理される
				assert.Equal(t, entity.Timeframe(""), tf)
				assert.Equal(t, 0, outputsize)
				return []entity.Candle{}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name: "edge case: invalid outputsize string is passed as 0",
			url:  "/candles/BTC?outputsize=invalid",
			mockGetCandles: func(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error) {
				assert.Equal(t, 0, outputsize)
				return []entity.Candle{}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name: "error: unknown timeframe",
			url:  "/candles/BTC?timeframe=1month",
			mockGetCandles: func(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error) {
				return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTimeframe, string(tf))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"unknown timeframe: \"1month\""}`,
		},
		{
			name: "error: storage failure",
			url:  "/candles/BTC",
			mockGetCandles: func(ctx context.Context, symbol string, tf entity.Timeframe, outputsize int) ([]entity.Candle, error) {
				return nil, &domain.StorageError{Op: "find", Err: errors.New("disk I/O error")}
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"storage find: disk I/O error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// モックusecaseのインスタンスを生成
			router := newRouter(&mockCandlesUsecase{GetCandlesFunc: tt.mockGetCandles}, nil)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

// TestCandlesHandler_GetGapsHandler は欠損チェックエンドポイントのパラメータ処理とレスポンス形式をテストします。
func TestCandlesHandler_GetGapsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	from := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name           string
		url            string
		detect         func(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success: gaps found",
			url:  "/gaps/btc?timeframe=1d&days=5",
			detect: func(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error) {
				assert.Equal(t, "btc", symbol)
				assert.Equal(t, entity.OneDay, tf)
				assert.Equal(t, 5, lookbackDays)
				return entity.GapCheckResult{
					Symbol: "BTC", Timeframe: entity.OneDay, CheckedFrom: from, CheckedTo: to,
					Gaps: []entity.Gap{{Start: from.Add(2 * day), End: from.Add(3 * day), MissingCandles: 2}},
				}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"symbol":"BTC","timeframe":"1d","checked_from":"2025-01-05T00:00:00Z","checked_to":"2025-01-10T00:00:00Z",
				"issues_found":2,"gaps":[{"start":"2025-01-07T00:00:00Z","end":"2025-01-08T00:00:00Z","missing_candles":2}]}`,
		},
		{
			name: "success: defaults",
			url:  "/gaps/ETH",
			detect: func(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error) {
				assert.Equal(t, entity.OneDay, tf)
				assert.Equal(t, 30, lookbackDays)
				return entity.GapCheckResult{Symbol: "ETH", Timeframe: tf, CheckedFrom: from, CheckedTo: to}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"symbol":"ETH","timeframe":"1d","checked_from":"2025-01-05T00:00:00Z","checked_to":"2025-01-10T00:00:00Z",
				"issues_found":0,"gaps":[]}`,
		},
		{
			name:           "error: unknown timeframe",
			url:            "/gaps/BTC?timeframe=5m",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"unknown timeframe: \"5m\""}`,
		},
		{
			name:           "error: invalid days",
			url:            "/gaps/BTC?days=-3",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"days must be a positive integer"}`,
		},
		{
			name: "error: storage failure",
			url:  "/gaps/BTC",
			detect: func(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error) {
				return entity.GapCheckResult{}, &domain.StorageError{Op: "list timestamps", Err: errors.New("locked")}
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"storage list timestamps: locked"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			gaps := &mockGapDetector{DetectGapsFunc: func(ctx context.Context, symbol string, tf entity.Timeframe, lookbackDays int) (entity.GapCheckResult, error) {
				called = true
				return tt.detect(ctx, symbol, tf, lookbackDays)
			}}
			router := newRouter(nil, gaps)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			assert.Equal(t, tt.detect != nil, called)
		})
	}
}
