package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"x402index/internal/app"
	"x402index/internal/service"
)

var (
	listCategory  string
	listMinUptime float64
	listMaxPrice  int64
	listSearch    string
	listSort      string
	listOrder     string
	listLimit     int
	listOffset    int

	showID string
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Browse active endpoints with filters, sorting and paging",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := service.ListQuery{
			Category: listCategory,
			Search:   listSearch,
			Sort:     listSort,
			Order:    listOrder,
			Limit:    listLimit,
			Offset:   listOffset,
		}
		if cmd.Flags().Changed("min-uptime") {
			q.MinUptime = &listMinUptime
		}
		if cmd.Flags().Changed("max-price") {
			if listMaxPrice < 0 {
				return fmt.Errorf("--max-price must not be negative")
			}
			q.MaxPrice = &listMaxPrice
		}
		return getApp().ListEndpoints(cmd.Context(), app.ListOptions{Query: q, JSON: outputJSON})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one endpoint with its recent pings and price history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showID == "" {
			return fmt.Errorf("--id is required")
		}
		return getApp().ShowEndpoint(cmd.Context(), showID, outputJSON)
	},
}

func init() {
	endpointsCmd.Flags().StringVar(&listCategory, "category", "", "Category slug")
	endpointsCmd.Flags().Float64Var(&listMinUptime, "min-uptime", 0, "Minimum 24h uptime percentage")
	endpointsCmd.Flags().Int64Var(&listMaxPrice, "max-price", 0, "Maximum price per request in micro-USDC")
	endpointsCmd.Flags().StringVar(&listSearch, "search", "", "Text to find in description or URL")
	endpointsCmd.Flags().StringVar(&listSort, "sort", "uptime", "Sort by uptime, price or latency")
	endpointsCmd.Flags().StringVar(&listOrder, "order", "desc", "Sort order: asc or desc")
	endpointsCmd.Flags().IntVar(&listLimit, "limit", service.DefaultListLimit, "Endpoints per page (max 100)")
	endpointsCmd.Flags().IntVar(&listOffset, "offset", 0, "Endpoints to skip")

	showCmd.Flags().StringVar(&showID, "id", "", "Endpoint id")

	for _, cmd := range []*cobra.Command{endpointsCmd, showCmd} {
		cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the result as JSON")
	}
}
