package cache

import (
	"time"
)

// TimeUntilNextBoundary は now の次のバケット境界（UTC基準、interval刻み）までの期間を返します。
// 境界ちょうどの場合は1バケット分を返します。
func TimeUntilNextBoundary(now time.Time, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	now = now.UTC()
	next := now.Truncate(interval).Add(interval)
	return next.Sub(now)
}
