package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "bondmarket",
	Short: "Bonded prediction market engine",
	Long: `Bonded prediction market engine where creators escrow collateral
sized by their reputation, bettors stake on outcomes, and reported
outcomes can be disputed by staking against them during a dispute
window.

The engine exposes market snapshots over HTTP, streams lifecycle
events over a websocket feed, and persists events to Postgres or
the console.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
