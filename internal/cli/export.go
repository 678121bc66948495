package cli

import (
	"github.com/spf13/cobra"

	"x402index/internal/app"
)

var (
	exportEndpoint  string
	exportDays      int
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export-prices",
	Short: "Export an endpoint's daily price history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ExportPrices(cmd.Context(), app.ExportOptions{
			EndpointID: exportEndpoint,
			Days:       exportDays,
			PNGPath:    exportPNGPath,
			CSVPath:    exportCSVPath,
			MaxPoints:  exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportEndpoint, "endpoint", "", "Endpoint id")
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Days of history, max 365 (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
