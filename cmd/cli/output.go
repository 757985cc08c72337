package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/sevigo/precedent/internal/core"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func severityColor(s core.Severity) *color.Color {
	switch s {
	case core.SeverityError:
		return errorColor
	case core.SeverityWarning:
		return warnColor
	default:
		return successColor
	}
}

func printReviewResult(result *core.ReviewResult) {
	titleColor.Println("\nReview")
	fmt.Println(result.Summary)

	if result.Degraded {
		warnColor.Println("\nThis review ran in degraded mode.")
	}

	for i, s := range result.Suggestions {
		location := s.FilePath
		if s.LineNumber > 0 {
			location = fmt.Sprintf("%s:%d", s.FilePath, s.LineNumber)
		}
		fmt.Printf("\n%d. ", i+1)
		severityColor(s.Severity).Printf("[%s]", strings.ToUpper(string(s.Severity)))
		boldColor.Printf(" %s", location)
		dimColor.Printf(" (%s, confidence %.2f)\n", s.Category, s.Confidence)
		fmt.Printf("   %s\n", s.Comment)
		dimColor.Printf("   id: %s\n", s.ID)
	}

	dimColor.Printf("\nFinished in %s\n", result.ProcessingTime.Round(time.Millisecond))
}

func printSummaryStats(stats *core.SummaryStats, window time.Duration) error {
	titleColor.Printf("Reviews in the last %s\n", window)
	if stats.Reviews == 0 {
		dimColor.Println("No reviews recorded in this window.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Reviews\t%d\n", stats.Reviews)
	fmt.Fprintf(w, "Degraded\t%d\n", stats.DegradedReviews)
	fmt.Fprintf(w, "Avg processing time\t%.2fs\n", stats.AverageProcessingTime)
	fmt.Fprintf(w, "Suggestions\t%d (avg %.1f)\n", stats.TotalSuggestions, stats.AverageSuggestions)
	for _, sev := range core.Severities {
		fmt.Fprintf(w, "  %s\t%d\n", sev, stats.BySeverity[sev])
	}
	fmt.Fprintf(w, "Files reviewed\t%d\n", stats.FilesReviewed)
	fmt.Fprintf(w, "Vector queries\t%d\n", stats.VectorQueries)
	fmt.Fprintf(w, "Tokens used\t%d\n", stats.TokensUsed)
	return w.Flush()
}

func printFeedbackStats(stats *core.FeedbackStats) error {
	titleColor.Println("Feedback")
	if stats.Total == 0 {
		dimColor.Println("No feedback recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTOTAL\tHELPFUL\tRATIO")
	fmt.Fprintf(w, "all\t%d\t%d\t%.2f\n", stats.Total, stats.Helpful, stats.HelpfulRatio)

	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		r := stats.ByCategory[c]
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\n", c, r.Total, r.Helpful, r.HelpfulRatio)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if stats.MalformedLines > 0 {
		warnColor.Printf("%d malformed line(s) skipped\n", stats.MalformedLines)
	}
	return nil
}

func printStoreHealth(h core.StoreHealth) {
	titleColor.Println("Vector store")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Backend\t%s\n", h.Backend)
	fmt.Fprintf(w, "Collection\t%s\n", h.Collection)
	_ = w.Flush()

	if !h.Healthy() {
		errorColor.Printf("Status: %s\n", h.Status)
		dimColor.Println(h.Error)
		return
	}
	successColor.Printf("Status: %s\n", h.Status)
	fmt.Printf("Documents: %d\n", h.Documents)
}
