package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/record"
)

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	records []record.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Insert(_ context.Context, records []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) SemanticSearch(_ context.Context, query []float32, threshold float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, rec := range m.records {
		if len(rec.Embedding) == 0 {
			continue
		}
		sim := embed.CosineSimilarity(query, rec.Embedding)
		if sim < threshold {
			continue
		}
		results = append(results, SearchResult{Record: rec, Similarity: sim})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Memory) KeywordSearch(_ context.Context, term string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	lower := strings.ToLower(term)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, rec := range m.records {
		if len(results) >= limit {
			break
		}
		if matchesKeyword(rec, lower) {
			results = append(results, SearchResult{Record: rec})
		}
	}
	return results, nil
}

func matchesKeyword(rec record.Record, lowerTerm string) bool {
	if strings.Contains(strings.ToLower(rec.Content), lowerTerm) {
		return true
	}
	for _, k := range rec.Keywords {
		if strings.Contains(strings.ToLower(k), lowerTerm) {
			return true
		}
	}
	return false
}

func (m *Memory) CategorySearch(_ context.Context, category string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, rec := range m.records {
		if len(results) >= limit {
			break
		}
		if rec.MedicalCategory == category {
			results = append(results, SearchResult{Record: rec})
		}
	}
	return results, nil
}

func (m *Memory) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		Categories: make(map[string]int),
		AgeGroups:  make(map[string]int),
	}
	for _, rec := range m.records {
		stats.TextbookCount++
		if len(rec.Embedding) > 0 && !embed.IsZero(rec.Embedding) {
			stats.EmbeddedCount++
		}
		if rec.MedicalCategory != "" {
			stats.Categories[rec.MedicalCategory]++
		}
		if rec.AgeGroup != "" {
			stats.AgeGroups[rec.AgeGroup]++
		}
	}
	return stats, nil
}
