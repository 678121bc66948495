package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"x402index/internal/scoring"
	"x402index/internal/service"
	"x402index/internal/storage"
)

// ExportOptions hold parameters for exporting an endpoint's price history.
type ExportOptions struct {
	EndpointID string
	Days       int
	PNGPath    string
	CSVPath    string
	MaxPoints  int
}

// ExportPrices renders the daily price history of one endpoint as CSV and/or
// PNG and prints the trend summary.
func (a *App) ExportPrices(ctx context.Context, opts ExportOptions) error {
	if opts.EndpointID == "" {
		return errors.New("--endpoint is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)
	if opts.Days <= 0 {
		opts.Days = a.Config.Export.DefaultDays
	}

	return a.withService(ctx, func(svc *service.Service) error {
		ph, err := svc.PriceHistory(ctx, opts.EndpointID, opts.Days)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprint(a.Out, formatTrend(ph)); err != nil {
			return err
		}
		if len(ph.History) == 0 {
			a.Logger.Info().Str("endpoint_id", opts.EndpointID).Msg("no price history found for export window")
			return nil
		}

		records := downsampleRecords(ph.History, opts.MaxPoints)
		a.Logger.Info().Int("total", len(ph.History)).Int("exported", len(records)).Msg("exporting price history")

		if opts.CSVPath != "" {
			if err := writePricesCSV(opts.CSVPath, records); err != nil {
				return err
			}
		}
		if opts.PNGPath != "" {
			if err := writePricesPNG(opts.PNGPath, ph.Endpoint.ResourceURL, records); err != nil {
				return err
			}
		}
		return nil
	})
}

func downsampleRecords(records []storage.PriceRecord, max int) []storage.PriceRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.PriceRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writePricesCSV(path string, records []storage.PriceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"recorded_at", "price_micro_usdc", "price_usdc"}); err != nil {
		return err
	}
	for _, r := range records {
		record := []string{
			r.RecordedAt.UTC().Format(time.DateOnly),
			strconv.FormatInt(r.PriceMicroUSDC, 10),
			decimal.New(r.PriceMicroUSDC, -6).String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writePricesPNG(path, title string, records []storage.PriceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	y := make([]float64, len(records))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, r := range records {
		x[i] = r.RecordedAt
		y[i] = decimal.New(r.PriceMicroUSDC, -6).InexactFloat64()
		lo, hi = math.Min(lo, y[i]), math.Max(hi, y[i])
	}
	// go-chart needs two points to draw a line.
	if len(records) == 1 {
		x = append(x, x[0].Add(24*time.Hour))
		y = append(y, y[0])
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price (USDC)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.4f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: y,
			},
		},
	}
	// A flat series has a zero-height range, which go-chart refuses to draw.
	if lo == hi {
		pad := math.Max(lo*0.1, 0.0001)
		graph.YAxis.Range = &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func formatTrend(ph service.PriceHistory) string {
	st := ph.Stats
	out := fmt.Sprintf("Endpoint: %s\nPeriod: %d days, %d snapshot(s)\nCurrent: %s\n",
		ph.Endpoint.ResourceURL, ph.PeriodDays, len(ph.History), formatPrice(ph.Endpoint.PriceMicroUSDC))
	out += fmt.Sprintf("Min/Avg/Max: %s / %s / %s\n", formatPrice(st.Min), formatPrice(st.Avg), formatPrice(st.Max))
	change := "-"
	if st.ChangePercent != nil {
		change = strconv.FormatFloat(*st.ChangePercent, 'f', 2, 64) + "%"
	}
	out += fmt.Sprintf("Change: %s (%s)\n", change, st.Trend)
	if st.Trend == scoring.TrendUnknown {
		out += "not enough history to determine a trend\n"
	}
	return out
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
