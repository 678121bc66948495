package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"x402index/internal/app"
	"x402index/internal/scoring"
)

var (
	compareCategory string
	compareSort     string
	compareLimit    int

	recommendTask      string
	recommendBudget    int64
	recommendMinUptime float64
	recommendMaxPrice  int64

	statusURL string

	outputJSON bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank the measured endpoints of a category",
	RunE: func(cmd *cobra.Command, args []string) error {
		if compareCategory == "" {
			return fmt.Errorf("--category is required")
		}
		return getApp().Compare(cmd.Context(), app.CompareOptions{
			Category: compareCategory,
			Sort:     compareSort,
			Limit:    compareLimit,
			JSON:     outputJSON,
		})
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend the best endpoint for a task or category",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recommendTask == "" {
			return fmt.Errorf("--task is required")
		}
		opts := app.RecommendOptions{
			Task: recommendTask,
			JSON: outputJSON,
		}
		if cmd.Flags().Changed("min-uptime") {
			if recommendMinUptime < 0 || recommendMinUptime > 100 {
				return fmt.Errorf("--min-uptime must be between 0 and 100")
			}
			opts.MinUptime = &recommendMinUptime
		}
		if cmd.Flags().Changed("budget") {
			if recommendBudget < 0 {
				return fmt.Errorf("--budget must not be negative")
			}
			opts.Budget = &recommendBudget
		}
		if cmd.Flags().Changed("max-price") {
			if recommendMaxPrice < 0 {
				return fmt.Errorf("--max-price must not be negative")
			}
			opts.MaxPrice = &recommendMaxPrice
		}
		return getApp().Recommend(cmd.Context(), opts)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of one endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusURL == "" {
			return fmt.Errorf("--url is required")
		}
		return getApp().Status(cmd.Context(), statusURL, outputJSON)
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories with endpoint counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Categories(cmd.Context(), outputJSON)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareCategory, "category", "", "Category slug")
	compareCmd.Flags().StringVar(&compareSort, "sort", "score", "Sort by score, price, uptime or latency")
	compareCmd.Flags().IntVar(&compareLimit, "limit", 10, "Maximum endpoints to list (max 50)")

	recommendCmd.Flags().StringVar(&recommendTask, "task", "", "Category slug or free-text task")
	recommendCmd.Flags().Int64Var(&recommendBudget, "budget", 0, "Budget per request in micro-USDC")
	recommendCmd.Flags().Float64Var(&recommendMinUptime, "min-uptime", scoring.DefaultMinUptime, "Minimum 24h uptime percentage (0 disables the floor)")
	recommendCmd.Flags().Int64Var(&recommendMaxPrice, "max-price", 0, "Maximum price per request in micro-USDC")

	statusCmd.Flags().StringVar(&statusURL, "url", "", "Resource URL")

	for _, cmd := range []*cobra.Command{compareCmd, recommendCmd, statusCmd, categoriesCmd} {
		cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the result as JSON")
	}
}
