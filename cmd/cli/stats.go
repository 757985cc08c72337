package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsWindow time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize review metrics over a time window",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		application, cleanup, err := initializeApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := application.Metrics.SummaryStats(ctx, statsWindow)
		if err != nil {
			return fmt.Errorf("failed to read metrics: %w", err)
		}
		if outputJSON {
			return printJSON(stats)
		}
		return printSummaryStats(stats, statsWindow)
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	statsCmd.Flags().DurationVar(&statsWindow, "window", 24*time.Hour, "Time window to summarize")
	rootCmd.AddCommand(statsCmd)
}
