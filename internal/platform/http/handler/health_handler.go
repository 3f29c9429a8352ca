// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Check は依存先（DB, Redisなど）の疎通を確認します。
type Check func(ctx context.Context) error

// Health はサービスヘルスチェック用の /healthz エンドポイントを処理します。
// プロセスが応答できることだけを確認し、依存先は見ません。
func Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Readiness は /readyz を処理します。登録されたすべてのチェックが成功した場合のみ200を返します。
type Readiness struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewReadiness creates a Readiness. Each check runs with the given timeout.
func NewReadiness(timeout time.Duration, checks map[string]Check) *Readiness {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Readiness{checks: checks, timeout: timeout}
}

// Ready は各チェックの結果をJSONで返します。失敗がある場合は503です。
func (r *Readiness) Ready(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	names := make([]string, 0, len(r.checks))
	for n := range r.checks {
		names = append(names, n)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, n := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), r.timeout)
		err := r.checks[n](ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			results[n] = err.Error()
			continue
		}
		results[n] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}
