package cli

import (
	"github.com/spf13/cobra"
)

var (
	simulateURL      string
	simulateFailures int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic endpoint-deactivated alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateURL, simulateFailures)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateURL, "url", "https://example.com/x402/resource", "Resource URL shown in the alert")
	simulateCmd.Flags().IntVar(&simulateFailures, "failures", 10, "Consecutive failures shown in the alert")
}
