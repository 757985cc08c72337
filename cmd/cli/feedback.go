package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/precedent/internal/core"
)

var (
	feedbackSuggestionID string
	feedbackPRNumber     int
	feedbackHelpful      bool
	feedbackCategory     string
	feedbackComment      string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record whether a suggestion was helpful",
	Long: `Record whether a suggestion was helpful.

Examples:
  precedent-cli feedback --suggestion 3f2a9c... --pr 42 --helpful
  precedent-cli feedback --suggestion 3f2a9c... --pr 42 --helpful=false --category style --comment "noise"`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		application, cleanup, err := initializeApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		entry := core.FeedbackEntry{
			SuggestionID: feedbackSuggestionID,
			PRNumber:     feedbackPRNumber,
			WasHelpful:   feedbackHelpful,
			Comment:      feedbackComment,
			Category:     core.Category(strings.ToLower(feedbackCategory)),
			Timestamp:    time.Now().UTC(),
		}
		if err := application.Feedback.RecordFeedback(ctx, entry); err != nil {
			return fmt.Errorf("failed to record feedback: %w", err)
		}

		if outputJSON {
			return printJSON(entry)
		}
		successColor.Printf("Feedback recorded for suggestion %s\n", entry.SuggestionID)
		return nil
	},
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "feedback-stats",
	Short: "Show helpfulness ratios from the feedback log",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		application, cleanup, err := initializeApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := application.Feedback.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read feedback: %w", err)
		}
		if outputJSON {
			return printJSON(stats)
		}
		return printFeedbackStats(stats)
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	feedbackCmd.Flags().StringVar(&feedbackSuggestionID, "suggestion", "", "ID of the suggestion")
	feedbackCmd.Flags().IntVar(&feedbackPRNumber, "pr", 0, "Pull request number")
	feedbackCmd.Flags().BoolVar(&feedbackHelpful, "helpful", false, "Whether the suggestion was helpful")
	feedbackCmd.Flags().StringVar(&feedbackCategory, "category", "", "Suggestion category")
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "Optional developer comment")
	_ = feedbackCmd.MarkFlagRequired("suggestion")
	_ = feedbackCmd.MarkFlagRequired("pr")

	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(feedbackStatsCmd)
}
