// Package dto defines data transfer objects for the symbollist HTTP API.
package dto

// SymbolItem represents a watch-list entry in the API response.
type SymbolItem struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// AddSymbolsRequest is the body of POST /symbols.
type AddSymbolsRequest struct {
	Codes []string `json:"codes" binding:"required,min=1"`
}
