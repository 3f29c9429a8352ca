package router_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"market_sync/internal/app/router"
	candleshandler "market_sync/internal/feature/candles/transport/handler"
	symbollisthandler "market_sync/internal/feature/symbollist/transport/handler"
	platformhandler "market_sync/internal/platform/http/handler"
)

func TestNewRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := router.NewRouter(
		candleshandler.NewCandlesHandler(nil, nil, 30),
		symbollisthandler.NewSymbolHandler(nil),
		platformhandler.NewReadiness(0, nil),
	)

	got := map[string]bool{}
	for _, ri := range r.Routes() {
		got[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		http.MethodGet + " /healthz",
		http.MethodHead + " /healthz",
		http.MethodGet + " /readyz",
		http.MethodGet + " /candles/:symbol",
		http.MethodGet + " /gaps/:symbol",
		http.MethodGet + " /symbols",
		http.MethodPost + " /symbols",
		http.MethodDelete + " /symbols/:code",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}
