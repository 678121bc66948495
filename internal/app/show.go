package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"x402index/internal/scoring"
	"x402index/internal/service"
)

// CompareOptions configure the compare command.
type CompareOptions struct {
	Category string
	Sort     string
	Limit    int
	JSON     bool
}

// Compare prints the ranked endpoints of a category.
func (a *App) Compare(ctx context.Context, opts CompareOptions) error {
	key, err := scoring.ParseSortKey(opts.Sort)
	if err != nil {
		return err
	}
	return a.withService(ctx, func(svc *service.Service) error {
		cmp, err := svc.Compare(ctx, service.CompareQuery{Category: opts.Category, Sort: key, Limit: opts.Limit})
		if err != nil {
			return err
		}
		if opts.JSON {
			return writeJSON(a.Out, cmp)
		}
		return writeComparison(a.Out, cmp)
	})
}

// RecommendOptions configure the recommend command.
type RecommendOptions struct {
	Task      string
	Budget    *int64
	MinUptime *float64
	MaxPrice  *int64
	JSON      bool
}

// Recommend prints the best endpoint for a task.
func (a *App) Recommend(ctx context.Context, opts RecommendOptions) error {
	return a.withService(ctx, func(svc *service.Service) error {
		rec, err := svc.Recommend(ctx, service.RecommendQuery{
			Task:      opts.Task,
			Budget:    opts.Budget,
			MinUptime: opts.MinUptime,
			MaxPrice:  opts.MaxPrice,
		})
		if err != nil {
			return err
		}
		if opts.JSON {
			return writeJSON(a.Out, rec)
		}
		return writeRecommendation(a.Out, rec)
	})
}

// Status prints the health of one endpoint.
func (a *App) Status(ctx context.Context, url string, asJSON bool) error {
	return a.withService(ctx, func(svc *service.Service) error {
		st, err := svc.Status(ctx, url)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(a.Out, st)
		}
		return writeStatus(a.Out, st)
	})
}

// Categories prints the taxonomy with endpoint counts.
func (a *App) Categories(ctx context.Context, asJSON bool) error {
	return a.withService(ctx, func(svc *service.Service) error {
		sum, err := svc.Categories(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(a.Out, sum)
		}
		return writeCategories(a.Out, sum)
	})
}

// ListOptions configure the endpoint directory listing.
type ListOptions struct {
	Query service.ListQuery
	JSON  bool
}

// ListEndpoints prints one page of the endpoint directory.
func (a *App) ListEndpoints(ctx context.Context, opts ListOptions) error {
	return a.withService(ctx, func(svc *service.Service) error {
		page, err := svc.ListEndpoints(ctx, opts.Query)
		if err != nil {
			return err
		}
		if opts.JSON {
			return writeJSON(a.Out, page)
		}
		return writeEndpointPage(a.Out, page)
	})
}

// ShowEndpoint prints one endpoint with its recent pings and price history.
func (a *App) ShowEndpoint(ctx context.Context, id string, asJSON bool) error {
	return a.withService(ctx, func(svc *service.Service) error {
		detail, err := svc.EndpointDetail(ctx, id)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(a.Out, detail)
		}
		return writeEndpointDetail(a.Out, detail)
	})
}

func writeEndpointPage(w io.Writer, page service.EndpointPage) error {
	if len(page.Endpoints) == 0 {
		_, err := fmt.Fprintf(w, "no endpoints found (total %d)\n", page.Total)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCategory\tUptime24h\tAvgLatency\tPrice\tNetwork\tURL")
	for _, ep := range page.Endpoints {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ep.ID,
			formatOptional(ep.Category),
			formatUptime(ep.Uptime24h),
			formatLatency(ep.AvgLatencyMs),
			formatPrice(ep.PriceMicroUSDC),
			formatOptional(ep.Network),
			ep.ResourceURL,
		)
	}
	last := page.Offset + len(page.Endpoints)
	fmt.Fprintf(tw, "showing %d-%d of %d", page.Offset+1, last, page.Total)
	if page.HasMore {
		fmt.Fprintf(tw, " (next: --offset %d)", last)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func writeEndpointDetail(w io.Writer, d service.EndpointDetail) error {
	ep := d.Endpoint
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", ep.ID)
	fmt.Fprintf(tw, "URL:\t%s\n", ep.ResourceURL)
	fmt.Fprintf(tw, "Description:\t%s\n", sanitizeInline(formatOptional(ep.Description)))
	fmt.Fprintf(tw, "Category:\t%s\n", formatOptional(ep.Category))
	fmt.Fprintf(tw, "Tags:\t%s\n", strings.Join(ep.Tags, ","))
	fmt.Fprintf(tw, "Price:\t%s\n", formatPrice(ep.PriceMicroUSDC))
	fmt.Fprintf(tw, "Network:\t%s\n", formatOptional(ep.Network))
	fmt.Fprintf(tw, "Pay to:\t%s\n", formatOptional(ep.PayToAddress))
	fmt.Fprintf(tw, "Source:\t%s\n", ep.Source)
	fmt.Fprintf(tw, "Active:\t%t\n", ep.IsActive)
	fmt.Fprintf(tw, "Uptime 24h/7d/30d:\t%s / %s / %s\n", formatUptime(ep.Uptime24h), formatUptime(ep.Uptime7d), formatUptime(ep.Uptime30d))
	fmt.Fprintf(tw, "Latency avg/p95:\t%s / %s\n", formatLatency(ep.AvgLatencyMs), formatLatency(ep.P95LatencyMs))
	fmt.Fprintf(tw, "Pings (24h):\t%d\n", len(d.RecentPings))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.PriceHistory) == 0 {
		return nil
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Date\tPrice")
	for _, r := range d.PriceHistory {
		price := r.PriceMicroUSDC
		fmt.Fprintf(tw, "%s\t%s\n", r.RecordedAt.UTC().Format(time.DateOnly), formatPrice(&price))
	}
	return tw.Flush()
}

func writeComparison(w io.Writer, cmp service.Comparison) error {
	if len(cmp.Endpoints) == 0 {
		_, err := fmt.Fprintf(w, "no measured endpoints found in category %s\n", cmp.Category)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Category: %s (sorted by %s, %d in category)\n", cmp.Category, cmp.SortedBy, cmp.TotalInCategory)
	fmt.Fprintln(tw, "Rank\tScore\tUptime24h\tAvgLatency\tPrice\tURL")
	for _, r := range cmp.Endpoints {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Rank,
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			formatUptime(r.Uptime24h),
			formatLatency(r.AvgLatencyMs),
			formatPrice(r.PriceMicroUSDC),
			r.ResourceURL,
		)
	}
	return tw.Flush()
}

func writeRecommendation(w io.Writer, rec *scoring.Recommendation) error {
	if rec == nil {
		_, err := io.WriteString(w, "no endpoints found matching your criteria\n"+
			"  - try a different task category\n"+
			"  - increase your budget\n"+
			"  - lower the minimum uptime requirement\n")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Recommended: %s (score %s)\n", rec.Best.ResourceURL, strconv.FormatFloat(rec.Best.Score, 'f', 2, 64))
	for _, line := range rec.Reasoning {
		fmt.Fprintf(tw, "  %s\n", line)
	}
	if len(rec.Alternatives) > 0 {
		fmt.Fprintln(tw, "Rank\tScore\tUptime24h\tPrice\tURL")
		for _, alt := range rec.Alternatives {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				alt.Rank,
				strconv.FormatFloat(alt.Score, 'f', 2, 64),
				formatUptime(alt.Uptime24h),
				formatPrice(alt.PriceMicroUSDC),
				alt.ResourceURL,
			)
		}
	}
	fmt.Fprintf(tw, "%d matching endpoint(s)\n", rec.TotalMatches)
	return tw.Flush()
}

func writeStatus(w io.Writer, st service.EndpointStatus) error {
	ep := st.Endpoint
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "URL:\t%s\n", ep.ResourceURL)
	fmt.Fprintf(tw, "Status:\t%s\n", st.Status)
	fmt.Fprintf(tw, "Active:\t%t\n", ep.IsActive)
	fmt.Fprintf(tw, "Uptime 24h/7d/30d:\t%s / %s / %s\n", formatUptime(ep.Uptime24h), formatUptime(ep.Uptime7d), formatUptime(ep.Uptime30d))
	fmt.Fprintf(tw, "Latency avg/p95:\t%s / %s\n", formatLatency(ep.AvgLatencyMs), formatLatency(ep.P95LatencyMs))
	fmt.Fprintf(tw, "Error rate:\t%s\n", formatRatio(ep.ErrorRate))
	fmt.Fprintf(tw, "Last seen:\t%s\n", formatTime(ep.LastSeenAt))
	fmt.Fprintf(tw, "Last error:\t%s\n", formatTime(ep.LastErrorAt))
	fmt.Fprintf(tw, "Consecutive failures:\t%d\n", ep.ConsecutiveFailures)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.RecentPings) == 0 {
		return nil
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Time (UTC)\tOK\tHTTP\tLatency\tError")
	for _, p := range st.RecentPings {
		code := "-"
		if p.StatusCode != nil {
			code = strconv.Itoa(*p.StatusCode)
		}
		errMsg := ""
		if p.ErrorMessage != nil {
			errMsg = sanitizeInline(*p.ErrorMessage)
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", p.PingedAt.UTC().Format(time.RFC3339), p.Success, code, formatLatency(p.LatencyMs), errMsg)
	}
	return tw.Flush()
}

func writeCategories(w io.Writer, sum service.CategorySummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Slug\tName\tEndpoints\tDescription")
	for _, c := range sum.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Slug, c.Name, c.EndpointCount, c.Description)
	}
	fmt.Fprintf(tw, "Total active: %d, uncategorized: %d\n", sum.TotalActive, sum.Uncategorized)
	return tw.Flush()
}

func writeIngestionReport(w io.Writer, r service.IngestionReport) error {
	if r.Skipped {
		_, err := io.WriteString(w, "ingestion skipped: another run holds the lock\n")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Source\tEndpoints\tNetworks\tError")
	for _, st := range r.Sources {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", st.Source, st.Count, formatNetworks(st.Networks), sanitizeInline(st.Err))
	}
	fmt.Fprintf(tw, "fetched=%d duplicates=%d updated=%d errors=%d price_snapshots=%d duration=%s\n",
		r.Fetched, r.Duplicates, r.Updated, r.Errors, r.PriceSnapshots, r.Duration.Round(time.Millisecond))
	for _, msg := range r.SampleErrors {
		fmt.Fprintf(tw, "  error: %s\n", sanitizeInline(msg))
	}
	return tw.Flush()
}

func writeHealthCheckReport(w io.Writer, r service.HealthCheckReport) error {
	if r.Skipped {
		_, err := io.WriteString(w, "health check skipped: another run holds the lock\n")
		return err
	}
	_, err := fmt.Fprintf(w, "checked=%d successful=%d failed=%d errors=%d deactivated=%d duration=%s\n",
		r.Checked, r.Successful, r.Failed, r.Errors, r.Deactivated, r.Duration.Round(time.Millisecond))
	if err != nil {
		return err
	}
	for _, msg := range r.SampleErrors {
		if _, err := fmt.Fprintf(w, "  error: %s\n", sanitizeInline(msg)); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatCount(label string, n int64) string {
	return fmt.Sprintf("%s: %d\n", label, n)
}

func formatUptime(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + "%"
}

func formatRatio(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v*100, 'f', 2, 64) + "%"
}

func formatLatency(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10) + "ms"
}

func formatPrice(v *int64) string {
	if v == nil {
		return "-"
	}
	return "$" + scoring.FormatUSDC(*v)
}

func formatOptional(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatNetworks(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, counts[name]))
	}
	return strings.Join(parts, ",")
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
