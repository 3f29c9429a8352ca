// Package dto defines data transfer objects for the Twelve Data API responses.
package dto

// ErrorFields are present on every Twelve Data response; Status is "error" on failure.
type ErrorFields struct {
	Status  string `json:"status"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// TimeSeriesResponse represents the JSON response from the Twelve Data time_series endpoint.
type TimeSeriesResponse struct {
	ErrorFields
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []TimeSeriesValue `json:"values"`
}

// TimeSeriesValue is one bar. Volume is absent for some instruments (e.g., forex).
type TimeSeriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume,omitempty"`
}

// PriceResponse represents the /price endpoint.
type PriceResponse struct {
	ErrorFields
	Price string `json:"price"`
}

// StocksResponse represents the /stocks reference endpoint.
type StocksResponse struct {
	ErrorFields
	Data []struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Exchange string `json:"exchange"`
	} `json:"data"`
}
