package scoring

import "github.com/shopspring/decimal"

// Trend is the direction of a price series.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendStable  Trend = "stable"
	TrendUnknown Trend = "unknown"
)

// trendThresholdPct is the change beyond which a series counts as moving.
var trendThresholdPct = decimal.NewFromInt(5)

// TrendStats summarises a price history.
type TrendStats struct {
	Min           *int64
	Max           *int64
	Avg           *int64
	Change        *int64
	ChangePercent *float64
	Trend         Trend
}

// PriceTrend summarises history (oldest first) against the current price.
// With no history the current price stands in for min, max and average and
// the trend is unknown. A zero starting price leaves the percentage unset and
// the trend stable.
func PriceTrend(history []int64, current *int64) TrendStats {
	if len(history) == 0 {
		return TrendStats{Min: current, Max: current, Avg: current, Trend: TrendUnknown}
	}

	lo, hi := history[0], history[0]
	sum := decimal.Zero
	for _, p := range history {
		lo = min(lo, p)
		hi = max(hi, p)
		sum = sum.Add(decimal.NewFromInt(p))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(history)))).Round(0).IntPart()

	first := history[0]
	last := history[len(history)-1]
	if current != nil && *current != 0 {
		last = *current
	}
	change := last - first

	stats := TrendStats{Min: &lo, Max: &hi, Avg: &avg, Change: &change, Trend: TrendStable}
	if first == 0 {
		return stats
	}

	pct := decimal.NewFromInt(change).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(first))
	rounded, _ := pct.Round(2).Float64()
	stats.ChangePercent = &rounded

	switch {
	case pct.GreaterThan(trendThresholdPct):
		stats.Trend = TrendUp
	case pct.LessThan(trendThresholdPct.Neg()):
		stats.Trend = TrendDown
	}
	return stats
}
