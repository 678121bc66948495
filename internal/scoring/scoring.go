// Package scoring ranks endpoints by a fixed-anchor quality score and picks a
// recommendation for a task under an optional budget.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	// LatencyCeilingMs is the latency at which the latency term reaches zero.
	LatencyCeilingMs = 2000.0
	// PriceCeilingMicroUSDC is the price at which the unbudgeted price term
	// reaches zero (1 USDC).
	PriceCeilingMicroUSDC = 1_000_000.0
)

// Candidate is the scoring view of an endpoint.
type Candidate struct {
	EndpointID     string
	ResourceURL    string
	Description    *string
	Category       *string
	Tags           []string
	Network        *string
	PriceMicroUSDC *int64
	Uptime24h      *float64
	Uptime7d       *float64
	AvgLatencyMs   *int64
	P95LatencyMs   *int64
	LastSeenAt     *time.Time
}

// Ranked is a candidate with its score and 1-based position.
type Ranked struct {
	Rank  int
	Score float64
	Candidate
}

// SortKey selects the ordering used by Rank.
type SortKey string

const (
	SortScore   SortKey = "score"
	SortPrice   SortKey = "price"
	SortUptime  SortKey = "uptime"
	SortLatency SortKey = "latency"
)

// ParseSortKey accepts score, price, uptime or latency; empty means score.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return SortScore, nil
	case SortScore, SortPrice, SortUptime, SortLatency:
		return key, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// ComparisonScore weighs 24h uptime, latency and price 40/30/30 against fixed
// anchors. A missing metric contributes nothing.
func ComparisonScore(c Candidate) float64 {
	score := 0.0
	if c.Uptime24h != nil {
		score += 0.4 * (*c.Uptime24h / 100)
	}
	score += 0.3 * latencyTerm(c.AvgLatencyMs)
	if c.PriceMicroUSDC != nil {
		score += 0.3 * math.Max(0, 1-float64(*c.PriceMicroUSDC)/PriceCeilingMicroUSDC)
	}
	return round2(score)
}

// Rank scores every candidate and orders them by key. Ties keep input order.
// A positive limit truncates the result.
func Rank(cands []Candidate, key SortKey, limit int) []Ranked {
	ranked := make([]Ranked, len(cands))
	for i, c := range cands {
		ranked[i] = Ranked{Score: ComparisonScore(c), Candidate: c}
	}

	var less func(a, b Ranked) bool
	switch key {
	case SortPrice:
		less = func(a, b Ranked) bool { return priceOrInf(a.PriceMicroUSDC) < priceOrInf(b.PriceMicroUSDC) }
	case SortUptime:
		less = func(a, b Ranked) bool { return uptimeOrZero(a.Uptime24h) > uptimeOrZero(b.Uptime24h) }
	case SortLatency:
		less = func(a, b Ranked) bool { return latencyOrInf(a.AvgLatencyMs) < latencyOrInf(b.AvgLatencyMs) }
	default:
		less = func(a, b Ranked) bool { return a.Score > b.Score }
	}
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func latencyTerm(ms *int64) float64 {
	if ms == nil {
		return 0
	}
	return math.Max(0, 1-float64(*ms)/LatencyCeilingMs)
}

func priceOrInf(p *int64) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return float64(*p)
}

func latencyOrInf(ms *int64) float64 {
	if ms == nil {
		return math.Inf(1)
	}
	return float64(*ms)
}

func uptimeOrZero(u *float64) float64 {
	if u == nil {
		return 0
	}
	return *u
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
