// Package dto defines the JSON bodies of the candles endpoints.
package dto

import "github.com/shopspring/decimal"

// CandleResponse はロウソク足データのレスポンスDTOです。価格は精度を保つため文字列で返します。
type CandleResponse struct {
	Time   string          `json:"time"`   // バケット開始時刻（RFC3339, UTC）
	Open   decimal.Decimal `json:"open"`   // 始値
	High   decimal.Decimal `json:"high"`   // 高値
	Low    decimal.Decimal `json:"low"`    // 安値
	Close  decimal.Decimal `json:"close"`  // 終値
	Volume decimal.Decimal `json:"volume"` // 出来高
}

// GapResponse is one missing run of candles.
type GapResponse struct {
	Start          string `json:"start"`
	End            string `json:"end"`
	MissingCandles int    `json:"missing_candles"`
}

// GapCheckResponse は欠損チェック結果のレスポンスDTOです。
type GapCheckResponse struct {
	Symbol      string        `json:"symbol"`
	Timeframe   string        `json:"timeframe"`
	CheckedFrom string        `json:"checked_from"`
	CheckedTo   string        `json:"checked_to"`
	IssuesFound int           `json:"issues_found"`
	Gaps        []GapResponse `json:"gaps"`
}
