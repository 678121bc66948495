package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"x402index/internal/storage"
)

const (
	// DefaultListLimit and MaxListLimit bound one directory page.
	DefaultListLimit = 50
	MaxListLimit     = 100

	detailPingWindow = 24 * time.Hour
	detailPingLimit  = 100
	detailPriceDays  = 30
)

// ListQuery filters, orders and pages the endpoint directory. Sort is one of
// uptime (default), price or latency; Order is desc (default) or asc.
type ListQuery struct {
	Category  string
	MinUptime *float64
	MaxPrice  *int64
	Search    string
	Sort      string
	Order     string
	Limit     int
	Offset    int
}

// EndpointPage is one page of the endpoint directory.
type EndpointPage struct {
	Endpoints []storage.Endpoint
	Total     int
	Limit     int
	Offset    int
	HasMore   bool
}

// ParseListSort maps a directory sort name to its store order.
func ParseListSort(sort string) (storage.CandidateOrder, error) {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "", "uptime":
		return storage.OrderByUptime, nil
	case "price":
		return storage.OrderByPrice, nil
	case "latency":
		return storage.OrderByLatency, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q (want uptime, price or latency)", ErrInvalidQuery, sort)
	}
}

func parseDescending(order string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "desc":
		return true, nil
	case "asc":
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown order %q (want asc or desc)", ErrInvalidQuery, order)
	}
}

// ListEndpoints returns one page of active endpoints. Endpoints missing the
// sort value come last in either direction.
func (s *Service) ListEndpoints(ctx context.Context, q ListQuery) (EndpointPage, error) {
	if s.endpoints == nil {
		return EndpointPage{}, storage.ErrNotConfigured
	}
	orderBy, err := ParseListSort(q.Sort)
	if err != nil {
		return EndpointPage{}, err
	}
	desc, err := parseDescending(q.Order)
	if err != nil {
		return EndpointPage{}, err
	}
	if q.Offset < 0 {
		return EndpointPage{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidQuery)
	}
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	filter := storage.CandidateFilter{
		ActiveOnly: true,
		MinUptime:  q.MinUptime,
		MaxPrice:   q.MaxPrice,
		Search:     strings.TrimSpace(q.Search),
		OrderBy:    orderBy,
		Descending: desc,
		Limit:      limit,
		Offset:     q.Offset,
	}
	if category := strings.TrimSpace(q.Category); category != "" {
		filter.Category = &category
	}

	total, err := s.endpoints.CountCandidates(ctx, filter)
	if err != nil {
		return EndpointPage{}, fmt.Errorf("list endpoints: %w", err)
	}
	rows, err := s.endpoints.ListCandidates(ctx, filter)
	if err != nil {
		return EndpointPage{}, fmt.Errorf("list endpoints: %w", err)
	}

	return EndpointPage{
		Endpoints: rows,
		Total:     total,
		Limit:     limit,
		Offset:    q.Offset,
		HasMore:   q.Offset+limit < total,
	}, nil
}

// EndpointDetail is the full view of one endpoint.
type EndpointDetail struct {
	Endpoint     storage.Endpoint
	RecentPings  []storage.Ping
	PriceHistory []storage.PriceRecord
}

// EndpointDetail loads an endpoint with its pings of the last 24 hours
// (newest first, at most 100) and its daily prices of the last 30 days.
func (s *Service) EndpointDetail(ctx context.Context, id string) (EndpointDetail, error) {
	if s.endpoints == nil || s.pings == nil || s.prices == nil {
		return EndpointDetail{}, storage.ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return EndpointDetail{}, fmt.Errorf("%w: endpoint id is required", ErrInvalidQuery)
	}

	ep, err := s.endpoints.GetEndpoint(ctx, id)
	if err != nil {
		return EndpointDetail{}, err
	}

	now := s.now()
	pings, err := s.pings.ListPingsSince(ctx, ep.ID, now.Add(-detailPingWindow))
	if err != nil {
		return EndpointDetail{}, fmt.Errorf("endpoint detail %s: %w", ep.ID, err)
	}
	if len(pings) > detailPingLimit {
		pings = pings[:detailPingLimit]
	}

	since := now.AddDate(0, 0, -detailPriceDays).Truncate(24 * time.Hour)
	history, err := s.prices.ListPriceHistory(ctx, ep.ID, since)
	if err != nil {
		return EndpointDetail{}, fmt.Errorf("endpoint detail %s: %w", ep.ID, err)
	}

	return EndpointDetail{Endpoint: ep, RecentPings: pings, PriceHistory: history}, nil
}
