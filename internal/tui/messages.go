package tui

import (
	"github.com/dgallion1/pedigest/internal/store"
)

// SearchResultMsg delivers the outcome of a search command.
type SearchResultMsg struct {
	Mode  string
	Query string
	Hits  []store.SearchResult
	Err   error
}

// StatsMsg delivers store statistics.
type StatsMsg struct {
	Stats *store.Stats
	Err   error
}
