package api

import (
	"github.com/starford/raido/internal/index"
)

// ProviderListResponse wraps the provider listing.
type ProviderListResponse struct {
	Providers []ProviderSummary `json:"providers" validate:"required"`
	Total     int               `json:"total" example:"42" validate:"required"`
}

// ProviderDetailResponse wraps every entry under one provider.
type ProviderDetailResponse struct {
	Provider string           `json:"provider" example:"apis.example.com" validate:"required"`
	APIs     []index.EntryRow `json:"apis" validate:"required"`
}

// EntryResponse is the full entry payload (aliased from the index layer).
type EntryResponse = index.EntryRow

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Provider string `json:"provider" example:"apis.example.com" validate:"required"`
	Service  string `json:"service,omitempty" example:"payments"`
	Version  string `json:"version" example:"1.0.0" validate:"required"`
	Title    string `json:"title" example:"Payments API" validate:"required"`
	Snippet  string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// StatusResponse carries aggregate registry counts.
type StatusResponse struct {
	Providers int `json:"providers" example:"12" validate:"required"`
	APIs      int `json:"apis" example:"240" validate:"required"`
	Invalid   int `json:"invalid" example:"3" validate:"required"`
}
