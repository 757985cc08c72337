// Package storage provides an abstraction for vector database interactions.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sevigo/precedent/internal/core"
)

// Filter restricts a query to records whose metadata equals every given value.
// Supported keys are the Meta* constants.
type Filter map[string]string

// Metadata keys stored next to every vector.
const (
	MetaRepository  = "repository"
	MetaPRNumber    = "pr_number"
	MetaFilePath    = "file_path"
	MetaStartLine   = "start_line"
	MetaEndLine     = "end_line"
	MetaSnippet     = "diff_snippet"
	MetaComment     = "comment"
	MetaCategory    = "category"
	MetaSeverity    = "severity"
	MetaLanguage    = "language"
	MetaReviewer    = "reviewer"
	MetaWasResolved = "was_resolved"
	MetaCreatedAt   = "created_at"
	MetaIngestedAt  = "ingested_at"
	MetaRecordID    = "record_id"
)

// VectorStore defines the contract for interacting with vector databases.
//
//go:generate mockgen -destination=../../mocks/mock_vectorstore.go -package=mocks . VectorStore
type VectorStore interface {
	// Upsert inserts or replaces records by ID. Every record must carry its embedding.
	Upsert(ctx context.Context, records []core.ReviewRecord) error

	// Query returns up to n nearest records by cosine similarity. It applies
	// no threshold; ranking rules are the Retriever's job.
	Query(ctx context.Context, vector []float32, n int, filter Filter) ([]core.ScoredRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

func recordMetadata(r *core.ReviewRecord) map[string]string {
	md := map[string]string{
		MetaRecordID:    r.ID,
		MetaRepository:  r.Repository,
		MetaPRNumber:    strconv.Itoa(r.PRNumber),
		MetaFilePath:    r.FilePath,
		MetaStartLine:   strconv.Itoa(r.StartLine),
		MetaEndLine:     strconv.Itoa(r.EndLine),
		MetaSnippet:     r.DiffSnippet,
		MetaComment:     r.Comment,
		MetaCategory:    string(r.Category),
		MetaSeverity:    string(r.Severity),
		MetaLanguage:    string(r.Language),
		MetaReviewer:    r.Reviewer,
		MetaWasResolved: strconv.FormatBool(r.WasResolved),
		MetaIngestedAt:  r.IngestedAt.UTC().Format(time.RFC3339Nano),
	}
	if !r.CreatedAt.IsZero() {
		md[MetaCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return md
}

func recordFromMetadata(id string, md map[string]string) (core.ReviewRecord, error) {
	r := core.ReviewRecord{
		ID:          id,
		Repository:  md[MetaRepository],
		FilePath:    md[MetaFilePath],
		DiffSnippet: md[MetaSnippet],
		Comment:     md[MetaComment],
		Category:    core.Category(md[MetaCategory]),
		Severity:    core.Severity(md[MetaSeverity]),
		Language:    core.CodeLanguage(md[MetaLanguage]),
		Reviewer:    md[MetaReviewer],
	}
	if orig := md[MetaRecordID]; orig != "" {
		r.ID = orig
	}

	var err error
	if r.PRNumber, err = atoiOrZero(md[MetaPRNumber]); err != nil {
		return r, fmt.Errorf("record %s: bad %s: %w", id, MetaPRNumber, err)
	}
	if r.StartLine, err = atoiOrZero(md[MetaStartLine]); err != nil {
		return r, fmt.Errorf("record %s: bad %s: %w", id, MetaStartLine, err)
	}
	if r.EndLine, err = atoiOrZero(md[MetaEndLine]); err != nil {
		return r, fmt.Errorf("record %s: bad %s: %w", id, MetaEndLine, err)
	}
	r.WasResolved = md[MetaWasResolved] == "true"
	if r.IngestedAt, err = timeOrZero(md[MetaIngestedAt]); err != nil {
		return r, fmt.Errorf("record %s: bad %s: %w", id, MetaIngestedAt, err)
	}
	if r.CreatedAt, err = timeOrZero(md[MetaCreatedAt]); err != nil {
		return r, fmt.Errorf("record %s: bad %s: %w", id, MetaCreatedAt, err)
	}
	return r, nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func timeOrZero(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func checkUpsert(records []core.ReviewRecord, dimension int) error {
	for i := range records {
		if records[i].ID == "" {
			return fmt.Errorf("record %d has no id", i)
		}
		if len(records[i].Embedding) != dimension {
			return fmt.Errorf("record %s: %w: got %d, want %d", records[i].ID, core.ErrDimensionMismatch, len(records[i].Embedding), dimension)
		}
	}
	return nil
}
