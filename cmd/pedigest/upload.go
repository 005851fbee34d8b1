package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/pipeline"
	"github.com/dgallion1/pedigest/internal/record"
)

var uploadInput string

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a JSONL dataset to the configured store",
	Long: `Read a textbook JSONL dataset and insert it into the configured
store backend in paced batches, retrying transient failures.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload()
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadInput, "input", "i", "", "dataset JSONL path (required)")
	uploadCmd.MarkFlagRequired("input")
}

func runUpload() error {
	log := newLogger()
	cfg := config.Load()
	if err := cfg.ValidateStore(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	f, err := os.Open(uploadInput)
	if err != nil {
		return fmt.Errorf("open %s: %w", uploadInput, err)
	}
	records, err := record.ReadJSONL(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records in %s", uploadInput)
	}

	unembedded := 0
	for _, rec := range records {
		if len(rec.Embedding) == 0 || embed.IsZero(rec.Embedding) {
			unembedded++
		}
	}
	if unembedded > 0 {
		log.Warn("records without embeddings will not match semantic search", "count", unembedded)
	}

	ctx := context.Background()
	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	batches := (len(records) + cfg.BatchSize - 1) / cfg.BatchSize
	log.Info("uploading dataset",
		"records", len(records),
		"batches", batches,
		"backend", cfg.StoreBackend)

	uploaded := 0
	for start := 0; start < len(records); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(records))
		batch := records[start:end]
		batchNum := start/cfg.BatchSize + 1

		var lastErr error
		for attempt := range pipeline.MaxRetries {
			lastErr = sink.Insert(ctx, batch)
			if lastErr == nil || !pipeline.IsRetryable(lastErr) {
				break
			}
			log.Warn("retryable upload error", "batch", batchNum, "attempt", attempt, "error", lastErr)
			time.Sleep(pipeline.Backoff(attempt))
		}
		if lastErr != nil {
			return fmt.Errorf("batch %d/%d: %w", batchNum, batches, lastErr)
		}
		uploaded += len(batch)
		log.Info("uploaded batch", "batch", batchNum, "of", batches)

		if end < len(records) && cfg.BatchPause > 0 {
			time.Sleep(cfg.BatchPause)
		}
	}

	log.Info("upload complete", "uploaded", uploaded)
	return nil
}
