// Package store persists classified records and serves search over them.
// Four backends share the same interfaces: the Supabase REST API, direct
// Postgres with pgvector, a local SQLite file, and append-only JSONL
// datasets, plus an in-memory store for tests and dry runs.
package store

import (
	"context"
	"fmt"

	"github.com/dgallion1/pedigest/internal/record"
)

// Defaults for semantic search, shared by every backend.
const (
	DefaultMatchThreshold = 0.7
	DefaultMatchLimit     = 5
)

// Sink accepts batches of records for storage.
type Sink interface {
	// Insert stores a batch. Implementations must accept an empty batch
	// as a no-op.
	Insert(ctx context.Context, records []record.Record) error

	// Count returns the number of stored textbook records.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// SearchResult is one search hit; Similarity is set by semantic search
// and zero otherwise.
type SearchResult struct {
	Record     record.Record
	Similarity float32
}

// Stats summarizes a store's contents.
type Stats struct {
	TextbookCount int            `json:"textbook_count"`
	ResourceCount int            `json:"resource_count"`
	EmbeddedCount int            `json:"embedded_count"`
	Categories    map[string]int `json:"categories"`
	AgeGroups     map[string]int `json:"age_groups"`
}

// Searcher retrieves stored records.
type Searcher interface {
	// SemanticSearch ranks records by cosine similarity against the
	// query vector, dropping hits below threshold.
	SemanticSearch(ctx context.Context, query []float32, threshold float32, limit int) ([]SearchResult, error)

	// KeywordSearch matches records whose content or keywords contain
	// the term, case-insensitively.
	KeywordSearch(ctx context.Context, term string, limit int) ([]SearchResult, error)

	// CategorySearch matches records labeled with the exact category.
	CategorySearch(ctx context.Context, category string, limit int) ([]SearchResult, error)

	// Stats summarizes the store.
	Stats(ctx context.Context) (*Stats, error)
}

// Store combines storage and retrieval.
type Store interface {
	Sink
	Searcher
}

// RetryableError indicates a transient backend failure worth retrying.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
