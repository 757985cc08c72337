package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sevigo/precedent/internal/core"
)

var (
	reviewFilePath   string
	reviewRepository string
	reviewPRNumber   int
)

var reviewCmd = &cobra.Command{
	Use:   "review [patch-file]",
	Short: "Review a unified diff patch of a single file",
	Long: `Review a unified diff patch of a single file.

The patch is embedded, similar past reviews are retrieved from the vector
store, and the model returns suggestions anchored to the changed lines.

Examples:
  precedent-cli review --file internal/auth/login.go --repo acme/api --pr 42 login.patch
  precedent-cli review --json --file main.go --repo acme/api --pr 7 main.patch`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewCmd.Flags().StringVar(&reviewFilePath, "file", "", "Path of the changed file inside the repository")
	reviewCmd.Flags().StringVar(&reviewRepository, "repo", "", "Repository the change belongs to (owner/name)")
	reviewCmd.Flags().IntVar(&reviewPRNumber, "pr", 0, "Pull request number")
	_ = reviewCmd.MarkFlagRequired("file")
	_ = reviewCmd.MarkFlagRequired("repo")
	_ = reviewCmd.MarkFlagRequired("pr")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(_ *cobra.Command, args []string) error {
	patch, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read patch: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	application, cleanup, err := initializeApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req := &core.ReviewRequest{
		Repository: reviewRepository,
		PRNumber:   reviewPRNumber,
		Files: []core.FileDiff{
			{FilePath: reviewFilePath, Patch: string(patch)},
		},
	}

	if !outputJSON {
		dimColor.Printf("Reviewing %s (%s#%d)...\n", reviewFilePath, reviewRepository, reviewPRNumber)
	}
	result, err := application.Service.Review(ctx, req)
	if err != nil {
		return fmt.Errorf("review failed (%s): %w", core.KindOf(err), err)
	}

	if outputJSON {
		return printJSON(result)
	}
	printReviewResult(result)
	return nil
}
