package entity

import "time"

// CollectionResult summarises one symbol of a collection run.
// WindowStart and WindowEnd are the first and last fetched timestamps, nil when nothing was fetched.
type CollectionResult struct {
	Symbol          string
	Timeframe       Timeframe
	CandlesFetched  int
	CandlesInserted int
	WindowStart     *time.Time
	WindowEnd       *time.Time
}

// Gap is a contiguous run of expected but absent candle timestamps.
type Gap struct {
	Start          time.Time
	End            time.Time
	MissingCandles int
}

// GapCheckResult is the outcome of inspecting a stored window for gaps.
type GapCheckResult struct {
	Symbol      string
	Timeframe   Timeframe
	CheckedFrom time.Time
	CheckedTo   time.Time
	Gaps        []Gap
}

// IssuesFound is the total number of missing candles across all gaps.
func (r GapCheckResult) IssuesFound() int {
	n := 0
	for _, g := range r.Gaps {
		n += g.MissingCandles
	}
	return n
}

// ProviderInfo describes an upstream data provider and its limits.
type ProviderInfo struct {
	Name                 string
	RequiresAPIKey       bool
	RateLimitPerMinute   int
	SupportedTimeframes  []Timeframe
	MaxCandlesPerRequest int
	BaseURL              string
}

// SupportsTimeframe reports whether tf is listed in SupportedTimeframes.
func (p ProviderInfo) SupportsTimeframe(tf Timeframe) bool {
	for _, s := range p.SupportedTimeframes {
		if s == tf {
			return true
		}
	}
	return false
}
