// Package sources fetches x402 resource listings from upstream registries and
// merges them into one deduplicated set of endpoints.
package sources

import (
	"context"
	"encoding/json"
	"time"
)

// SourceEndpoint is the registry-independent shape every adapter produces.
type SourceEndpoint struct {
	ResourceURL    string
	Description    *string
	PriceMicroUSDC *int64
	Network        *string
	PayToAddress   *string
	ProviderName   *string
	Source         string
	RawData        json.RawMessage
}

// Source is a paginated upstream registry.
type Source interface {
	Name() string
	FetchEndpoints(ctx context.Context, maxPages int) ([]SourceEndpoint, error)
}

// SourceStats summarises one source's contribution to an aggregation run.
type SourceStats struct {
	Source    string         `json:"source"`
	Count     int            `json:"count"`
	Networks  map[string]int `json:"networks"`
	FetchedAt time.Time      `json:"fetched_at"`
	Err       string         `json:"error,omitempty"`
}

// Result is the output of an aggregation run.
type Result struct {
	Endpoints []SourceEndpoint
	Stats     []SourceStats
	// Total counts endpoints before deduplication.
	Total int
}

// completeness ranks how much useful data a record carries.
func completeness(ep SourceEndpoint) int {
	score := 0
	if ep.Description != nil && *ep.Description != "" {
		score += 2
	}
	if ep.PriceMicroUSDC != nil {
		score += 2
	}
	if ep.Network != nil && *ep.Network != "" {
		score++
	}
	if ep.PayToAddress != nil && *ep.PayToAddress != "" {
		score++
	}
	return score
}
