package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_sync/internal/feature/candles/domain"
	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/feature/candles/usecase"
)

// ErrDB はモックと期待値の間で共有されるセンチネルエラーです。
var ErrDB = errors.New("database error")

// mockCandleReader はCandleReaderインターフェースのモック実装です。
type mockCandleReader struct {
	FindFunc  func(ctx context.Context, symbol string, tf entity.Timeframe, provider string, limit int) ([]entity.Candle, error)
	FindCalls int
}

func (m *mockCandleReader) Find(ctx context.Context, symbol string, tf entity.Timeframe, provider string, limit int) ([]entity.Candle, error) {
	m.FindCalls++
	if m.FindFunc != nil {
		return m.FindFunc(ctx, symbol, tf, provider, limit)
	}
	return nil, errors.New("FindFunc is not implemented")
}

// TestCandlesUsecase_GetCandles はGetCandlesメソッドのパラメータ処理とリポジトリ呼び出しをテストします。
func TestCandlesUsecase_GetCandles(t *testing.T) {
	ctx := context.Background()
	expectedCandles := []entity.Candle{
		{Symbol: "BTC", Timeframe: entity.OneDay, Provider: "coingecko", Timestamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	testCases := []struct {
		name               string
		inputSymbol        string
		inputTimeframe     entity.Timeframe
		inputOutputsize    int
		findErr            error
		expectedErr        error
		expectedSymbol     string
		expectedTimeframe  entity.Timeframe
		expectedOutputsize int
		expectedCalls      int
	}{
		{
			name:               "success: all parameters specified",
			inputSymbol:        "BTC",
			inputTimeframe:     entity.OneWeek,
			inputOutputsize:    50,
			expectedSymbol:     "BTC",
			expectedTimeframe:  entity.OneWeek,
			expectedOutputsize: 50,
			expectedCalls:      1,
		},
		{
			name:               "success: symbol is normalized",
			inputSymbol:        " eth/usd ",
			inputTimeframe:     entity.OneHour,
			inputOutputsize:    10,
			expectedSymbol:     "ETH",
			expectedTimeframe:  entity.OneHour,
			expectedOutputsize: 10,
			expectedCalls:      1,
		},
		{
			name:               "success: default timeframe when empty",
			inputSymbol:        "SOL",
			inputOutputsize:    100,
			expectedSymbol:     "SOL",
			expectedTimeframe:  entity.OneDay,
			expectedOutputsize: 100,
			expectedCalls:      1,
		},
		{
			name:               "success: default outputsize when 0",
			inputSymbol:        "BTC",
			inputTimeframe:     entity.FourHour,
			expectedSymbol:     "BTC",
			expectedTimeframe:  entity.FourHour,
			expectedOutputsize: usecase.DefaultOutputSize,
			expectedCalls:      1,
		},
		{
			name:               "success: default outputsize when above max",
			inputSymbol:        "BTC",
			inputTimeframe:     entity.OneDay,
			inputOutputsize:    usecase.MaxOutputSize + 1,
			expectedSymbol:     "BTC",
			expectedTimeframe:  entity.OneDay,
			expectedOutputsize: usecase.DefaultOutputSize,
			expectedCalls:      1,
		},
		{
			name:           "error: unknown timeframe",
			inputSymbol:    "BTC",
			inputTimeframe: entity.Timeframe("1month"),
			expectedErr:    domain.ErrUnknownTimeframe,
		},
		{
			name:               "error: repository returns error",
			inputSymbol:        "BTC",
			inputTimeframe:     entity.OneDay,
			inputOutputsize:    10,
			findErr:            ErrDB,
			expectedErr:        ErrDB,
			expectedSymbol:     "BTC",
			expectedTimeframe:  entity.OneDay,
			expectedOutputsize: 10,
			expectedCalls:      1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockCandleReader{
				FindFunc: func(ctx context.Context, symbol string, tf entity.Timeframe, provider string, limit int) ([]entity.Candle, error) {
					assert.Equal(t, tc.expectedSymbol, symbol)
					assert.Equal(t, tc.expectedTimeframe, tf)
					assert.Equal(t, "coingecko", provider)
					assert.Equal(t, tc.expectedOutputsize, limit)
					if tc.findErr != nil {
						return nil, tc.findErr
					}
					return expectedCandles, nil
				},
			}
			uc := usecase.NewCandlesUsecase(mock, "coingecko")

			got, err := uc.GetCandles(ctx, tc.inputSymbol, tc.inputTimeframe, tc.inputOutputsize)

			assert.Equal(t, tc.expectedCalls, mock.FindCalls)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, expectedCandles, got)
		})
	}
}
