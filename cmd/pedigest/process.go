package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pedigest/internal/classify"
	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/corpus"
	"github.com/dgallion1/pedigest/internal/dataset"
	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/pipeline"
	"github.com/dgallion1/pedigest/internal/record"
	"github.com/dgallion1/pedigest/internal/segment"
)

var (
	processInput    string
	processOutput   string
	processTraining string
	processEmbed    bool
	processPrefix   string
	processSource   string
	processBasePage int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Parse a corpus file or directory into a JSONL dataset",
	Long: `Parse supported corpus files (txt, md, csv, html, pdf, docx) into
classified textbook records and write them as JSONL. With --embed the
records also get embedding vectors before writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess()
	},
}

func init() {
	processCmd.Flags().StringVarP(&processInput, "input", "i", "", "corpus file or directory (required)")
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output JSONL path (default from OUTPUT_PATH)")
	processCmd.Flags().StringVar(&processTraining, "training", "", "also write a conversational training JSONL to this path")
	processCmd.Flags().BoolVar(&processEmbed, "embed", false, "generate embeddings for each record")
	processCmd.Flags().StringVar(&processPrefix, "id-prefix", "", "record ID prefix (default nelson)")
	processCmd.Flags().StringVar(&processSource, "source", "", "source attribution (default from SOURCE_NAME)")
	processCmd.Flags().IntVar(&processBasePage, "base-page", 0, "page number of the first section (default from BASE_PAGE)")
	processCmd.MarkFlagRequired("input")
}

func runProcess() error {
	log := newLogger()
	cfg := config.Load()

	if processEmbed && !cfg.MockEmbeddings && cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("--embed needs OPENAI_API_KEY or MOCK_EMBEDDINGS=true")
	}

	output := processOutput
	if output == "" {
		output = cfg.OutputPath
	}
	source := processSource
	if source == "" {
		source = cfg.SourceName
	}
	basePage := processBasePage
	if basePage <= 0 {
		basePage = cfg.BasePage
	}

	files, err := resolveInputFiles(processInput)
	if err != nil {
		return err
	}
	log.Info("processing corpus", "files", len(files), "output", output)

	seg := segment.New(segment.Config{MaxTokens: cfg.MaxChunkTokens})
	clsCfg := classify.DefaultConfig()
	clsCfg.MaxKeywords = cfg.MaxKeywords
	cls := classify.New(clsCfg)

	var records []record.Record
	seq := 0
	for _, path := range files {
		doc, err := corpus.ReadFile(path)
		if err != nil {
			log.Warn("skipping file", "path", path, "error", err)
			continue
		}
		sections := pipeline.SectionsFromDocument(doc, doc.Label, basePage, seg)
		for _, sec := range sections {
			seq++
			result := cls.Classify(sec.Content, sec.Chapter)
			records = append(records, record.New(record.TextbookID(processPrefix, seq), sec, result, source))
		}
		log.Info("processed file", "path", path, "sections", len(sections))
	}
	if len(records) == 0 {
		return fmt.Errorf("no records produced from %s", processInput)
	}

	if processEmbed {
		embedder := newEmbedder(cfg, log)
		if err := embedRecords(context.Background(), records, embedder, cfg.BatchSize, cfg.BatchPause, log); err != nil {
			return err
		}
	}

	n, err := dataset.WriteTextbook(output, records)
	if err != nil {
		return err
	}
	if processTraining != "" {
		tn, err := dataset.WriteTraining(processTraining, records)
		if err != nil {
			return err
		}
		log.Info("wrote training dataset", "path", processTraining, "examples", tn)
	}

	summary := dataset.Summarize(records)
	log.Info("dataset written",
		"path", output,
		"records", n,
		"embedded", summary.Embedded,
		"categories", len(summary.Categories))
	return nil
}

// resolveInputFiles expands a directory into its supported files, or
// checks a single file's extension.
func resolveInputFiles(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", input, err)
	}
	if info.IsDir() {
		files, err := corpus.ListFiles(input)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no supported files in %s", input)
		}
		return files, nil
	}
	if !corpus.IsSupportedExtension(input) {
		return nil, fmt.Errorf("unsupported file type: %s", input)
	}
	return []string{input}, nil
}

// embedRecords fills in embedding vectors batch by batch, pausing
// between batches to stay under provider rate limits.
func embedRecords(ctx context.Context, records []record.Record, embedder embed.Embedder, batchSize int, pause time.Duration, log *slog.Logger) error {
	if batchSize <= 0 {
		batchSize = 25
	}
	batches := (len(records) + batchSize - 1) / batchSize
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]
		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Content
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d/%d: %w", start/batchSize+1, batches, err)
		}
		for i := range batch {
			records[start+i].Embedding = vectors[i]
		}
		log.Info("embedded batch", "batch", start/batchSize+1, "of", batches)
		if end < len(records) && pause > 0 {
			time.Sleep(pause)
		}
	}
	return nil
}
