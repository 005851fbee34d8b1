package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/dataset"
	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/record"
)

var (
	embedInput  string
	embedOutput string
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill embeddings into a JSONL dataset",
	Long: `Read a textbook JSONL dataset and generate embedding vectors for
every record that has none. Records already embedded are left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEmbed()
	},
}

func init() {
	embedCmd.Flags().StringVarP(&embedInput, "input", "i", "", "dataset JSONL path (required)")
	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "", "output path (default: rewrite input)")
	embedCmd.MarkFlagRequired("input")
}

func runEmbed() error {
	log := newLogger()
	cfg := config.Load()

	if !cfg.MockEmbeddings && cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required unless MOCK_EMBEDDINGS=true")
	}

	output := embedOutput
	if output == "" {
		output = embedInput
	}

	f, err := os.Open(embedInput)
	if err != nil {
		return fmt.Errorf("open %s: %w", embedInput, err)
	}
	records, err := record.ReadJSONL(f)
	f.Close()
	if err != nil {
		return err
	}

	// Pull out the records still missing vectors, embed just those.
	var missing []int
	for i, rec := range records {
		if len(rec.Embedding) == 0 || embed.IsZero(rec.Embedding) {
			missing = append(missing, i)
		}
	}
	log.Info("loaded dataset", "records", len(records), "missing_embeddings", len(missing))
	if len(missing) == 0 {
		log.Info("nothing to do")
		return nil
	}

	pending := make([]record.Record, len(missing))
	for i, idx := range missing {
		pending[i] = records[idx]
	}
	embedder := newEmbedder(cfg, log)
	if err := embedRecords(context.Background(), pending, embedder, cfg.BatchSize, cfg.BatchPause, log); err != nil {
		return err
	}
	for i, idx := range missing {
		records[idx].Embedding = pending[i].Embedding
	}

	n, err := dataset.WriteTextbook(output, records)
	if err != nil {
		return err
	}
	log.Info("dataset rewritten", "path", output, "records", n, "embedded_now", len(missing))
	return nil
}
