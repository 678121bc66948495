package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"x402index/internal/reliability"
	"x402index/internal/scoring"
	"x402index/internal/storage"
)

const (
	// DefaultCompareLimit and MaxCompareLimit bound a comparison listing.
	DefaultCompareLimit = 10
	MaxCompareLimit     = 50

	// DefaultHistoryDays and MaxHistoryDays bound a price-history window.
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
)

// CompareQuery selects and orders the endpoints of one category.
type CompareQuery struct {
	Category string
	Sort     scoring.SortKey
	Limit    int
}

// Comparison is the ranked listing of a category.
type Comparison struct {
	Category        string
	SortedBy        scoring.SortKey
	Endpoints       []scoring.Ranked
	TotalInCategory int
}

// Compare ranks the active, measured endpoints of a category.
func (s *Service) Compare(ctx context.Context, q CompareQuery) (Comparison, error) {
	if strings.TrimSpace(q.Category) == "" {
		return Comparison{}, fmt.Errorf("%w: category is required", ErrInvalidQuery)
	}
	if s.endpoints == nil {
		return Comparison{}, storage.ErrNotConfigured
	}
	sortKey := q.Sort
	if sortKey == "" {
		sortKey = scoring.SortScore
	}
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultCompareLimit
	case limit > MaxCompareLimit:
		limit = MaxCompareLimit
	}

	category := q.Category
	rows, err := s.endpoints.ListCandidates(ctx, storage.CandidateFilter{
		Category:      &category,
		ActiveOnly:    true,
		RequireUptime: true,
	})
	if err != nil {
		return Comparison{}, fmt.Errorf("compare %s: %w", q.Category, err)
	}

	return Comparison{
		Category:        q.Category,
		SortedBy:        sortKey,
		Endpoints:       scoring.Rank(candidates(rows), sortKey, limit),
		TotalInCategory: len(rows),
	}, nil
}

// RecommendQuery describes the task an agent wants a resource for.
type RecommendQuery struct {
	Task      string
	Budget    *int64
	MinUptime *float64
	MaxPrice  *int64
}

// Recommend picks the best active endpoint for a task. The task matches a
// category exactly when such a category exists, otherwise it is searched as
// text. A nil recommendation means nothing qualified.
func (s *Service) Recommend(ctx context.Context, q RecommendQuery) (*scoring.Recommendation, error) {
	task := strings.TrimSpace(q.Task)
	if task == "" {
		return nil, fmt.Errorf("%w: task is required", ErrInvalidQuery)
	}
	if s.endpoints == nil {
		return nil, storage.ErrNotConfigured
	}

	isCategory := false
	if s.categories != nil {
		exists, err := s.categories.CategoryExists(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("recommend: %w", err)
		}
		isCategory = exists
	}

	filter := storage.CandidateFilter{ActiveOnly: true, RequireUptime: true}
	if isCategory {
		filter.Category = &task
	}
	rows, err := s.endpoints.ListCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}

	return scoring.Recommend(candidates(rows), scoring.Filter{
		Task:           task,
		TaskIsCategory: isCategory,
		MinUptime:      q.MinUptime,
		MaxPrice:       q.MaxPrice,
		Budget:         q.Budget,
	}), nil
}

// EndpointStatus is the health view of one endpoint.
type EndpointStatus struct {
	Endpoint    storage.Endpoint
	Status      reliability.Status
	RecentPings []storage.Ping
}

// Status reports the health of the endpoint at resourceURL from its stored
// metrics and latest pings.
func (s *Service) Status(ctx context.Context, resourceURL string) (EndpointStatus, error) {
	if strings.TrimSpace(resourceURL) == "" {
		return EndpointStatus{}, fmt.Errorf("%w: url is required", ErrInvalidQuery)
	}
	if s.endpoints == nil || s.pings == nil {
		return EndpointStatus{}, storage.ErrNotConfigured
	}

	ep, err := s.endpoints.GetEndpointByURL(ctx, resourceURL)
	if err != nil {
		return EndpointStatus{}, err
	}
	recent, err := s.pings.ListRecentPings(ctx, ep.ID, reliability.RecentPingWindow)
	if err != nil {
		return EndpointStatus{}, fmt.Errorf("status %s: %w", ep.ResourceURL, err)
	}

	return EndpointStatus{
		Endpoint:    ep,
		Status:      reliability.DetermineStatus(ep.IsActive, ep.ConsecutiveFailures, ep.Uptime24h, recent),
		RecentPings: recent,
	}, nil
}

// PriceHistory is the daily price series of an endpoint with its trend.
type PriceHistory struct {
	Endpoint   storage.Endpoint
	History    []storage.PriceRecord
	Stats      scoring.TrendStats
	PeriodDays int
}

// PriceHistory loads the last days of price snapshots of an endpoint.
// Non-positive days fall back to DefaultHistoryDays; the window is capped at
// MaxHistoryDays.
func (s *Service) PriceHistory(ctx context.Context, endpointID string, days int) (PriceHistory, error) {
	if s.endpoints == nil || s.prices == nil {
		return PriceHistory{}, storage.ErrNotConfigured
	}
	switch {
	case days <= 0:
		days = DefaultHistoryDays
	case days > MaxHistoryDays:
		days = MaxHistoryDays
	}

	ep, err := s.endpoints.GetEndpoint(ctx, endpointID)
	if err != nil {
		return PriceHistory{}, err
	}

	since := s.now().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	history, err := s.prices.ListPriceHistory(ctx, ep.ID, since)
	if err != nil {
		return PriceHistory{}, fmt.Errorf("price history %s: %w", ep.ID, err)
	}

	prices := make([]int64, 0, len(history))
	for _, r := range history {
		prices = append(prices, r.PriceMicroUSDC)
	}

	return PriceHistory{
		Endpoint:   ep,
		History:    history,
		Stats:      scoring.PriceTrend(prices, ep.PriceMicroUSDC),
		PeriodDays: days,
	}, nil
}

// CategorySummary lists the taxonomy with index-wide counts.
type CategorySummary struct {
	Categories    []storage.Category
	TotalActive   int64
	Uncategorized int64
}

// Categories returns the taxonomy and how many active endpoints it covers.
func (s *Service) Categories(ctx context.Context) (CategorySummary, error) {
	if s.categories == nil || s.endpoints == nil {
		return CategorySummary{}, storage.ErrNotConfigured
	}
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return CategorySummary{}, fmt.Errorf("list categories: %w", err)
	}
	summary, err := s.endpoints.SummarizeEndpoints(ctx)
	if err != nil {
		return CategorySummary{}, fmt.Errorf("summarize endpoints: %w", err)
	}
	return CategorySummary{
		Categories:    cats,
		TotalActive:   summary.Active,
		Uncategorized: summary.Uncategorized,
	}, nil
}

// PrunePings deletes pings older than the configured retention. A zero
// retention keeps everything.
func (s *Service) PrunePings(ctx context.Context) (int64, error) {
	if s.pings == nil {
		return 0, storage.ErrNotConfigured
	}
	if s.pingRetention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.pingRetention)
	n, err := s.pings.DeletePingsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune pings: %w", err)
	}
	s.logger.Info().Int64("deleted", n).Time("before", cutoff).Msg("pings pruned")
	return n, nil
}

func candidates(rows []storage.Endpoint) []scoring.Candidate {
	out := make([]scoring.Candidate, 0, len(rows))
	for _, ep := range rows {
		out = append(out, scoring.Candidate{
			EndpointID:     ep.ID,
			ResourceURL:    ep.ResourceURL,
			Description:    ep.Description,
			Category:       ep.Category,
			Tags:           ep.Tags,
			Network:        ep.Network,
			PriceMicroUSDC: ep.PriceMicroUSDC,
			Uptime24h:      ep.Uptime24h,
			Uptime7d:       ep.Uptime7d,
			AvgLatencyMs:   ep.AvgLatencyMs,
			P95LatencyMs:   ep.P95LatencyMs,
			LastSeenAt:     ep.LastSeenAt,
		})
	}
	return out
}
