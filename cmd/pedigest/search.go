package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/store"
	"github.com/dgallion1/pedigest/internal/tui"
)

var (
	searchQuery     string
	searchMode      string
	searchThreshold float32
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the store interactively or one-shot",
	Long: `Without --query this launches the interactive terminal client with
semantic, keyword and category search plus store stats. With --query it
runs a single search and prints the results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch()
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "run one search and exit")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "semantic", "search mode (semantic, keyword, category)")
	searchCmd.Flags().Float32Var(&searchThreshold, "threshold", 0, "minimum similarity for semantic matches")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results")
}

func runSearch() error {
	log := newLogger()
	cfg := config.Load()
	if err := cfg.ValidateStore(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	embedder := newEmbedder(cfg, log)

	if searchQuery == "" {
		return tui.Run(tui.ModelConfig{
			Searcher:  st,
			Embedder:  embedder,
			Threshold: searchThreshold,
			Limit:     searchLimit,
		})
	}

	threshold := searchThreshold
	if threshold <= 0 {
		threshold = store.DefaultMatchThreshold
	}
	limit := searchLimit
	if limit <= 0 {
		limit = store.DefaultMatchLimit
	}

	var hits []store.SearchResult
	switch searchMode {
	case "keyword":
		hits, err = st.KeywordSearch(ctx, searchQuery, limit)
	case "category":
		hits, err = st.CategorySearch(ctx, searchQuery, limit)
	case "semantic":
		if !cfg.MockEmbeddings && cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("semantic search needs OPENAI_API_KEY or MOCK_EMBEDDINGS=true")
		}
		var vectors [][]float32
		vectors, err = embedder.Embed(ctx, []string{searchQuery})
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		hits, err = st.SemanticSearch(ctx, vectors[0], threshold, limit)
	default:
		return fmt.Errorf("unknown search mode %q", searchMode)
	}
	if err != nil {
		return err
	}

	printResults(searchQuery, hits)
	return nil
}

func printResults(query string, hits []store.SearchResult) {
	if len(hits) == 0 {
		fmt.Printf("no results for %q\n", query)
		return
	}
	fmt.Printf("%d results for %q\n\n", len(hits), query)
	for i, hit := range hits {
		rec := hit.Record
		line := fmt.Sprintf("%d. %s", i+1, rec.Chapter)
		if rec.Section != "" {
			line += " / " + rec.Section
		}
		if rec.PageNumber > 0 {
			line += fmt.Sprintf(" (p. %d)", rec.PageNumber)
		}
		if hit.Similarity > 0 {
			line += fmt.Sprintf("  [%.2f]", hit.Similarity)
		}
		fmt.Println(line)
		fmt.Printf("   %s | %s\n", rec.MedicalCategory, rec.AgeGroup)
		content := strings.Join(strings.Fields(rec.Content), " ")
		if runes := []rune(content); len(runes) > 200 {
			content = string(runes[:200]) + "..."
		}
		fmt.Printf("   %s\n\n", content)
	}
}
