package storage

import (
	"encoding/json"
	"time"
)

// Endpoint is one indexed x402 resource keyed by its normalized URL.
type Endpoint struct {
	ID             string
	ResourceURL    string
	Description    *string
	Category       *string
	Tags           []string
	RawData        json.RawMessage
	PriceMicroUSDC *int64
	Network        *string
	PayToAddress   *string
	Source         string

	Uptime24h    *float64
	Uptime7d     *float64
	Uptime30d    *float64
	AvgLatencyMs *int64
	P95LatencyMs *int64
	ErrorRate    *float64

	LastSeenAt          *time.Time
	LastErrorAt         *time.Time
	ConsecutiveFailures int
	IsActive            bool

	FirstIndexedAt time.Time
	UpdatedAt      time.Time
}

// EndpointUpsert carries the ingestion-owned columns of an endpoint. Probe
// bookkeeping and reliability columns are never touched by an upsert except
// for the reactivation reset.
type EndpointUpsert struct {
	ResourceURL    string
	Description    *string
	Category       *string
	Tags           []string
	RawData        json.RawMessage
	PriceMicroUSDC *int64
	Network        *string
	PayToAddress   *string
	Source         string
}

// ProbeTarget is the subset of an endpoint the health prober needs.
type ProbeTarget struct {
	ID                  string
	ResourceURL         string
	Description         *string
	LastSeenAt          *time.Time
	LastErrorAt         *time.Time
	ConsecutiveFailures int
	IsActive            bool
}

// ProbeState is the bookkeeping written back after a probe.
type ProbeState struct {
	EndpointID  string
	LastSeenAt  *time.Time
	LastErrorAt *time.Time
	// ConsecutiveFailures and IsActive are the values expected from the
	// target snapshot. The store recomputes them from the current row using
	// Success and InactiveThreshold.
	ConsecutiveFailures int
	IsActive            bool
	Success             bool
	InactiveThreshold   int
}

// CheckResult is the endpoint state stored after a health check.
type CheckResult struct {
	ConsecutiveFailures int
	IsActive            bool
	// Deactivated is true only when this update flipped the row inactive.
	Deactivated bool
}

// Reliability holds the rolling metrics derived from ping history.
type Reliability struct {
	Uptime24h    *float64
	Uptime7d     *float64
	Uptime30d    *float64
	AvgLatencyMs *int64
	P95LatencyMs *int64
	ErrorRate    *float64
}

// Ping is one append-only health probe observation.
type Ping struct {
	ID           string
	EndpointID   string
	PingedAt     time.Time
	Success      bool
	StatusCode   *int
	LatencyMs    *int64
	ErrorMessage *string
}

// PriceRecord is the daily price snapshot of an endpoint.
type PriceRecord struct {
	EndpointID     string
	RecordedAt     time.Time
	PriceMicroUSDC int64
}

// Category is a taxonomy entry with its cached endpoint count.
type Category struct {
	Slug          string
	Name          string
	Description   string
	EndpointCount int
}

// CandidateOrder names the column ListCandidates sorts on. The zero value
// sorts by resource URL.
type CandidateOrder string

const (
	OrderByURL     CandidateOrder = ""
	OrderByUptime  CandidateOrder = "uptime"
	OrderByPrice   CandidateOrder = "price"
	OrderByLatency CandidateOrder = "latency"
)

// CandidateFilter narrows ListCandidates and CountCandidates. Limit and
// Offset only apply to ListCandidates.
type CandidateFilter struct {
	Category      *string
	ActiveOnly    bool
	RequireUptime bool
	// MinUptime keeps endpoints whose 24h uptime is at least this value.
	MinUptime *float64
	// MaxPrice keeps endpoints priced at most this value.
	MaxPrice *int64
	// Search matches description or resource URL, case-insensitively.
	Search     string
	OrderBy    CandidateOrder
	Descending bool
	Limit      int
	Offset     int
}
