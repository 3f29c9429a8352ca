package cache

import (
	"testing"
	"time"
)

func TestTimeUntilNextBoundary(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		expected time.Duration
	}{
		{"mid hour", base.Add(15 * time.Minute), time.Hour, 45 * time.Minute},
		{"on boundary", base.Add(3 * time.Hour), time.Hour, time.Hour},
		{"four hour bucket", base.Add(5 * time.Hour), 4 * time.Hour, 3 * time.Hour},
		{"daily", base.Add(18 * time.Hour), 24 * time.Hour, 6 * time.Hour},
		{"non-UTC input", base.Add(90 * time.Minute).In(time.FixedZone("JST", 9*3600)), time.Hour, 30 * time.Minute},
		{"zero interval", base, 0, 0},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := TimeUntilNextBoundary(tt.now, tt.interval)
			if got != tt.expected {
				t.Errorf("TimeUntilNextBoundary(%v, %v) = %v, expected %v", tt.now, tt.interval, got, tt.expected)
			}
		})
	}
}

func TestTimeUntilNextBoundary_AlwaysPositive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, interval := range []time.Duration{time.Hour, 4 * time.Hour, 24 * time.Hour} {
		d := TimeUntilNextBoundary(now, interval)
		if d <= 0 || d > interval {
			t.Errorf("interval %v: expected duration in (0, %v], got %v", interval, interval, d)
		}
	}
}
