package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_UserAgent(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(2*time.Second, "market_sync-test")
	assert.Equal(t, 2*time.Second, c.Timeout)

	res, err := c.Get(srv.URL)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	assert.Equal(t, "market_sync-test", got)
}

func TestNewHTTPClient_NoUserAgent(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(time.Second, "")
	_, ok := c.Transport.(*http.Transport)
	assert.True(t, ok)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"missing", "", time.Second},
		{"seconds", "30", 30 * time.Second},
		{"zero", "0", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"date in past", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", time.Second},
		{"negative", "-5", time.Second},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, ParseRetryAfter(h, now, time.Second))
		})
	}
}

func TestReadSnippet(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", ReadSnippet(strings.NewReader("  abcdef"), 5))
}
