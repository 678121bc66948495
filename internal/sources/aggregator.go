package sources

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"x402index/internal/urlnorm"
)

// Aggregator fans out to every configured source and merges the results.
type Aggregator struct {
	sources []Source
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAggregator wires the given sources, in priority order, into an
// Aggregator. Order matters only for dedup ties: the earlier source wins.
func NewAggregator(srcs []Source, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		sources: srcs,
		logger:  logger.With().Str("component", "aggregator").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sources lists the configured source names.
func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.sources))
	for _, src := range a.sources {
		names = append(names, src.Name())
	}
	return names
}

type sourceResult struct {
	endpoints []SourceEndpoint
	stats     SourceStats
}

// FetchAll fetches every source concurrently and waits for all of them. A
// failing source contributes whatever it returned before failing and an error
// note in its stats; it never fails the whole call.
func (a *Aggregator) FetchAll(ctx context.Context, maxPages int) Result {
	results := make([]sourceResult, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, src, maxPages)
			return nil
		})
	}
	_ = g.Wait()

	var all []SourceEndpoint
	stats := make([]SourceStats, 0, len(results))
	for _, res := range results {
		all = append(all, res.endpoints...)
		stats = append(stats, res.stats)
	}

	deduped := Deduplicate(all)
	a.logger.Info().Int("total", len(all)).Int("deduplicated", len(deduped)).Msg("aggregation complete")

	return Result{Endpoints: deduped, Stats: stats, Total: len(all)}
}

func (a *Aggregator) fetchOne(ctx context.Context, src Source, maxPages int) sourceResult {
	endpoints, err := src.FetchEndpoints(ctx, maxPages)

	stats := SourceStats{
		Source:    src.Name(),
		Count:     len(endpoints),
		Networks:  make(map[string]int),
		FetchedAt: a.now(),
	}
	for _, ep := range endpoints {
		network := "unknown"
		if ep.Network != nil && *ep.Network != "" {
			network = *ep.Network
		}
		stats.Networks[network]++
	}

	if err != nil {
		stats.Err = err.Error()
		a.logger.Error().Err(err).Str("source", src.Name()).Int("partial", len(endpoints)).Msg("source fetch failed")
	}

	return sourceResult{endpoints: endpoints, stats: stats}
}

// Deduplicate keeps one record per normalized URL: the most complete one, or
// the first seen when completeness ties. Records are selected, never merged,
// and output follows the first-seen order of each URL.
func Deduplicate(endpoints []SourceEndpoint) []SourceEndpoint {
	index := make(map[string]int, len(endpoints))
	out := make([]SourceEndpoint, 0, len(endpoints))

	for _, ep := range endpoints {
		key := urlnorm.Normalize(ep.ResourceURL)
		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, ep)
			continue
		}
		if completeness(ep) > completeness(out[pos]) {
			out[pos] = ep
		}
	}
	return out
}
