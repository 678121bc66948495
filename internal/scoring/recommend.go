package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMinUptime is the 24h uptime floor applied when a filter sets none.
const DefaultMinUptime = 90.0

const maxAlternatives = 3

// Filter selects the candidates eligible for a recommendation.
type Filter struct {
	// Task is a category slug or free text.
	Task string
	// TaskIsCategory makes Task match the category slug exactly. Otherwise
	// Task matches description or category as a case-insensitive substring,
	// or a tag exactly.
	TaskIsCategory bool
	// MinUptime is the inclusive 24h uptime floor, DefaultMinUptime when nil.
	// Candidates without a 24h uptime never qualify.
	MinUptime *float64
	// MaxPrice excludes candidates priced above it, and those with no price.
	MaxPrice *int64
	// Budget feeds the price term. When MaxPrice is nil it also acts as the
	// price cap.
	Budget *int64
}

// Recommendation is the best candidate for a task and its runners-up.
type Recommendation struct {
	Best         Ranked
	Reasoning    []string
	Alternatives []Ranked
	TotalMatches int
}

// RecommendationScore weighs 24h uptime 50%, latency 25% and price 25%. The
// price term is measured against budget when one is given, else against one
// USDC.
func RecommendationScore(c Candidate, budget *int64) float64 {
	score := 0.0
	if c.Uptime24h != nil {
		score += 0.5 * (*c.Uptime24h / 100)
	}
	score += 0.25 * latencyTerm(c.AvgLatencyMs)
	if c.PriceMicroUSDC != nil {
		ceiling := PriceCeilingMicroUSDC
		if budget != nil && *budget > 0 {
			ceiling = float64(*budget)
		}
		score += 0.25 * math.Max(0, 1-float64(*c.PriceMicroUSDC)/ceiling)
	}
	return round2(score)
}

// Recommend filters cands, ranks the matches by recommendation score and
// returns the winner with up to three alternatives. It returns nil when
// nothing matches.
func Recommend(cands []Candidate, f Filter) *Recommendation {
	minUptime := DefaultMinUptime
	if f.MinUptime != nil {
		minUptime = *f.MinUptime
	}
	maxPrice := f.MaxPrice
	if maxPrice == nil {
		maxPrice = f.Budget
	}

	matches := make([]Ranked, 0, len(cands))
	for _, c := range cands {
		if !matchesTask(c, f.Task, f.TaskIsCategory) {
			continue
		}
		if c.Uptime24h == nil || *c.Uptime24h < minUptime {
			continue
		}
		if maxPrice != nil && (c.PriceMicroUSDC == nil || *c.PriceMicroUSDC > *maxPrice) {
			continue
		}
		matches = append(matches, Ranked{Score: RecommendationScore(c, f.Budget), Candidate: c})
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	for i := range matches {
		matches[i].Rank = i + 1
	}

	alternatives := matches[1:]
	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}

	return &Recommendation{
		Best:         matches[0],
		Reasoning:    Reasoning(matches[0].Candidate, len(alternatives), f.Task, f.Budget),
		Alternatives: alternatives,
		TotalMatches: len(matches),
	}
}

// Reasoning explains a pick in a fixed line order: match, reliability tier,
// latency, price, budget headroom, alternatives.
func Reasoning(best Candidate, alternatives int, task string, budget *int64) []string {
	lines := []string{fmt.Sprintf("Best match for \"%s\" based on quality and value.", task)}

	if u := best.Uptime24h; u != nil {
		switch {
		case *u >= 99:
			lines = append(lines, fmt.Sprintf("Excellent reliability with %s%% uptime.", formatPercent(*u)))
		case *u >= 95:
			lines = append(lines, fmt.Sprintf("Good reliability with %s%% uptime.", formatPercent(*u)))
		}
	}

	if ms := best.AvgLatencyMs; ms != nil && *ms < 200 {
		lines = append(lines, fmt.Sprintf("Fast response time (%dms average).", *ms))
	}

	if p := best.PriceMicroUSDC; p != nil {
		lines = append(lines, fmt.Sprintf("Priced at $%s per request.", FormatUSDC(*p)))
		if budget != nil && float64(*p) < float64(*budget)*0.5 {
			lines = append(lines, fmt.Sprintf("Well under your $%s budget.", FormatUSDC(*budget)))
		}
	}

	switch {
	case alternatives == 1:
		lines = append(lines, "1 alternative available.")
	case alternatives > 1:
		lines = append(lines, fmt.Sprintf("%d alternatives available.", alternatives))
	}

	return lines
}

// FormatUSDC renders micro-USDC as dollars with four decimals.
func FormatUSDC(micro int64) string {
	return decimal.New(micro, -6).StringFixed(4)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func matchesTask(c Candidate, task string, isCategory bool) bool {
	if isCategory {
		return c.Category != nil && *c.Category == task
	}
	needle := strings.ToLower(strings.TrimSpace(task))
	if needle == "" {
		return true
	}
	if c.Description != nil && strings.Contains(strings.ToLower(*c.Description), needle) {
		return true
	}
	if c.Category != nil && strings.Contains(strings.ToLower(*c.Category), needle) {
		return true
	}
	for _, tag := range c.Tags {
		if tag == task {
			return true
		}
	}
	return false
}
