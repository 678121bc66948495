package cli

import (
	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill-metrics",
	Short: "Recompute reliability metrics of every endpoint from stored pings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Backfill(cmd.Context())
	},
}
