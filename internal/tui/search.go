package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgallion1/pedigest/internal/store"
)

const searchTimeout = 30 * time.Second

// searchCmd runs a search in the background and delivers a
// SearchResultMsg when it completes.
func (m Model) searchCmd(mode, query string) tea.Cmd {
	searcher := m.searcher
	embedder := m.embedder
	threshold := m.threshold
	limit := m.limit

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()

		var (
			hits []store.SearchResult
			err  error
		)
		switch mode {
		case modeKeyword:
			hits, err = searcher.KeywordSearch(ctx, query, limit)
		case modeCategory:
			hits, err = searcher.CategorySearch(ctx, query, limit)
		default:
			var vectors [][]float32
			vectors, err = embedder.Embed(ctx, []string{query})
			if err == nil && len(vectors) > 0 {
				hits, err = searcher.SemanticSearch(ctx, vectors[0], threshold, limit)
			}
		}
		return SearchResultMsg{Mode: mode, Query: query, Hits: hits, Err: err}
	}
}

// statsCmd fetches store statistics in the background.
func (m Model) statsCmd() tea.Cmd {
	searcher := m.searcher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()

		stats, err := searcher.Stats(ctx)
		return StatsMsg{Stats: stats, Err: err}
	}
}
