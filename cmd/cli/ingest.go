package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sevigo/precedent/internal/rag"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [records-file]",
	Short: "Load past review records into the vector store",
	Long: `Load past review records into the vector store.

The file is YAML or JSON: either a list of records or a mapping with a
"records" key. Invalid records are skipped and reported; records whose id
already exists are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open records file: %w", err)
		}
		defer f.Close()

		records, err := rag.LoadRecords(f)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		application, cleanup, err := initializeApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := application.Service.Ingest(ctx, records)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		if outputJSON {
			return printJSON(report)
		}
		successColor.Printf("Inserted %d record(s)\n", report.Inserted)
		if report.Skipped > 0 {
			warnColor.Printf("Skipped %d record(s)\n", report.Skipped)
			for _, reason := range report.Reasons {
				dimColor.Printf("  %s\n", reason)
			}
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(ingestCmd)
}
