package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"x402index/internal/app"
	"x402index/internal/config"
)

var (
	ingestMaxPages  int
	ingestJSON      bool
	healthBatchSize int
	healthJSON      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, classify and store endpoints from every enabled registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestMaxPages < 0 || ingestMaxPages > config.MaxIngestPages {
			return fmt.Errorf("--max-pages must be between 1 and %d", config.MaxIngestPages)
		}
		return getApp().Ingest(cmd.Context(), app.IngestOptions{MaxPages: ingestMaxPages, JSON: ingestJSON})
	},
}

var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe one batch of active endpoints and update their metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if healthBatchSize < 0 {
			return fmt.Errorf("--batch-size must not be negative")
		}
		return getApp().HealthCheck(cmd.Context(), app.HealthCheckOptions{BatchSize: healthBatchSize, JSON: healthJSON})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune-pings",
	Short: "Delete pings older than healthcheck.ping_retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().PrunePings(cmd.Context())
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestMaxPages, "max-pages", 0, "Pages to fetch per registry (defaults to config)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Print the report as JSON")

	healthCheckCmd.Flags().IntVar(&healthBatchSize, "batch-size", 0, "Endpoints to probe (defaults to config)")
	healthCheckCmd.Flags().BoolVar(&healthJSON, "json", false, "Print the report as JSON")
}
