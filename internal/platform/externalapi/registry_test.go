package externalapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/platform/externalapi"
)

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"coingecko", "twelvedata"}, externalapi.Names())
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, name := range externalapi.Names() {

		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p, err := externalapi.New(name, externalapi.Options{BaseURL: "http://example.invalid", Timeout: time.Second})
			require.NoError(t, err)
			info := p.Info()
			assert.Equal(t, name, info.Name)
			assert.Equal(t, "http://example.invalid", info.BaseURL)
			assert.Positive(t, info.RateLimitPerMinute)
			assert.ElementsMatch(t, entity.Timeframes(), info.SupportedTimeframes)
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()

	p, err := externalapi.New("binance", externalapi.Options{})
	require.ErrorIs(t, err, externalapi.ErrUnknownProvider)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "coingecko")
}

func TestNew_UsesSuppliedHTTPClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price": "10.5"}`))
	}))
	defer srv.Close()

	p, err := externalapi.New("twelvedata", externalapi.Options{
		BaseURL:            srv.URL,
		HTTPClient:         srv.Client(),
		RateLimitPerMinute: -1,
	})
	require.NoError(t, err)

	price, err := p.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "10.5", price.String())
}
