// Package reliability reduces probe history into rolling uptime, latency and
// error-rate metrics, and derives a coarse status for display.
package reliability

import (
	"math"
	"sort"
	"time"

	"x402index/internal/storage"
)

// Rolling windows measured back from the evaluation time.
const (
	Window24h = 24 * time.Hour
	Window7d  = 7 * 24 * time.Hour
	Window30d = 30 * 24 * time.Hour
)

// Metrics is the reliability summary persisted on an endpoint. Every field is
// nil when there is nothing to measure.
type Metrics = storage.Reliability

// Calculate derives metrics from pings as of now. A ping exactly on a window
// boundary belongs to the window. Latency figures use successful pings that
// carry a latency; the error rate covers every ping given.
func Calculate(pings []storage.Ping, now time.Time) Metrics {
	if len(pings) == 0 {
		return Metrics{}
	}

	m := Metrics{
		Uptime24h: uptime(pings, now.Add(-Window24h)),
		Uptime7d:  uptime(pings, now.Add(-Window7d)),
		Uptime30d: uptime(pings, now.Add(-Window30d)),
	}

	latencies := make([]int64, 0, len(pings))
	failed := 0
	for _, p := range pings {
		if !p.Success {
			failed++
			continue
		}
		if p.LatencyMs != nil {
			latencies = append(latencies, *p.LatencyMs)
		}
	}

	if len(latencies) > 0 {
		avg := average(latencies)
		p95 := Percentile(latencies, 95)
		m.AvgLatencyMs = &avg
		m.P95LatencyMs = &p95
	}

	rate := round(float64(failed)/float64(len(pings))*100, 4)
	m.ErrorRate = &rate

	return m
}

func uptime(pings []storage.Ping, since time.Time) *float64 {
	total, ok := 0, 0
	for _, p := range pings {
		if p.PingedAt.Before(since) {
			continue
		}
		total++
		if p.Success {
			ok++
		}
	}
	if total == 0 {
		return nil
	}
	v := round(float64(ok)/float64(total)*100, 2)
	return &v
}

func average(values []int64) int64 {
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return int64(math.Round(sum / float64(len(values))))
}

// Percentile returns the nearest-rank percentile p of values: the element at
// index ceil(p/100*n)-1 of the ascending order. values is not modified. It
// panics on an empty slice.
func Percentile(values []int64, p float64) int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
