package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/pedigest/internal/classify"
	"github.com/dgallion1/pedigest/internal/corpus"
	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/record"
	"github.com/dgallion1/pedigest/internal/segment"
	"github.com/dgallion1/pedigest/internal/store"
)

// WorkerConfig sets record attribution and upload pacing for a worker.
type WorkerConfig struct {
	IDPrefix   string
	Source     string
	BasePage   int
	BatchSize  int
	BatchPause time.Duration
}

// Worker processes a single document job.
type Worker struct {
	seg    *segment.Segmenter
	cls    *classify.Classifier
	emb    embed.Embedder
	sink   store.Sink
	hashes *hashIndex
	log    *slog.Logger
	cfg    WorkerConfig

	backoff func(attempt int) time.Duration // shortened in tests
}

func NewWorker(seg *segment.Segmenter, cls *classify.Classifier, emb embed.Embedder, sink store.Sink, hashes *hashIndex, log *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.BasePage <= 0 {
		cfg.BasePage = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Worker{
		seg:     seg,
		cls:     cls,
		emb:     emb,
		sink:    sink,
		hashes:  hashes,
		log:     log,
		cfg:     cfg,
		backoff: Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := corpus.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.fileData), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	label := doc.Label
	if job.Label != "" {
		label = job.Label
	}

	// Hash the parsed text so dedup survives container-format differences.
	job.ContentHash = ContentHashHex([]byte(flattenDocText(doc)))
	if prior, ok := w.hashes.Seen(job.ContentHash); ok {
		log.Info("duplicate document, skipping", "prior_job_id", prior)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	// Phase 2: Segment
	job.SetStatus(StatusSegmenting, "segmenting")
	sections := w.buildSections(doc, label)
	job.SetTotalSections(len(sections))
	log.Info("segmented document", "sections", len(sections))

	if len(sections) == 0 {
		log.Warn("no sections produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "segmenting")
		return
	}

	// Phase 3: Classify, embed and upload batch by batch.
	source := job.Source
	if source == "" {
		source = w.cfg.Source
	}
	prefix := job.IDPrefix
	if prefix == "" {
		prefix = w.cfg.IDPrefix
	}

	batches := (len(sections) + w.cfg.BatchSize - 1) / w.cfg.BatchSize
	uploaded := 0
	hadErrors := false
	seq := 0

	for start := 0; start < len(sections); start += w.cfg.BatchSize {
		end := min(start+w.cfg.BatchSize, len(sections))
		batch := sections[start:end]
		batchNum := start/w.cfg.BatchSize + 1

		if ctx.Err() != nil {
			job.AddError(fmt.Sprintf("batch %d: %s", batchNum, ctx.Err()))
			hadErrors = true
			break
		}

		job.SetStatus(StatusEmbedding, fmt.Sprintf("batch %d/%d", batchNum, batches))
		records := make([]record.Record, 0, len(batch))
		texts := make([]string, 0, len(batch))
		for _, sec := range batch {
			seq++
			cls := w.cls.Classify(sec.Content, sec.Chapter)
			records = append(records, record.New(record.TextbookID(prefix, seq), sec, cls, source))
			texts = append(texts, sec.Content)
		}

		vectors, err := w.emb.Embed(ctx, texts)
		if err != nil {
			log.Error("embedding failed", "batch", batchNum, "error", err)
			job.AddError(fmt.Sprintf("batch %d: embed: %s", batchNum, err))
			job.AddSectionsProcessed(len(batch))
			hadErrors = true
			continue
		}
		for i := range records {
			records[i].Embedding = vectors[i]
		}
		job.AddRecords(len(records), 0)

		job.SetStatus(StatusUploading, fmt.Sprintf("batch %d/%d", batchNum, batches))
		var lastErr error
		for attempt := range MaxRetries {
			lastErr = w.sink.Insert(ctx, records)
			if lastErr == nil || !IsRetryable(lastErr) {
				break
			}
			log.Warn("retryable upload error", "batch", batchNum, "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(w.backoff(attempt)):
			case <-ctx.Done():
				lastErr = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}
		if lastErr != nil {
			log.Error("upload failed", "batch", batchNum, "error", lastErr)
			job.AddError(fmt.Sprintf("batch %d: upload: %s", batchNum, lastErr))
			hadErrors = true
		} else {
			uploaded += len(records)
			job.AddRecords(0, len(records))
		}
		job.AddSectionsProcessed(len(batch))

		if end < len(sections) && w.cfg.BatchPause > 0 {
			select {
			case <-time.After(w.cfg.BatchPause):
			case <-ctx.Done():
			}
		}
	}

	log.Info("upload complete", "uploaded", uploaded, "sections", len(sections), "errors", hadErrors)

	// Register the hash once anything landed, so resubmitting the same
	// content does not double up records.
	if uploaded > 0 {
		w.hashes.Add(job.ContentHash, job.ID)
	}

	if hadErrors && uploaded > 0 {
		job.SetStatus(StatusPartial, "done")
	} else if hadErrors {
		job.SetStatus(StatusFailed, "uploading")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) buildSections(doc *corpus.Document, label string) []record.Section {
	return SectionsFromDocument(doc, label, w.cfg.BasePage, w.seg)
}

// SectionsFromDocument turns a parsed document into ordered sections.
// Tabular sources arrive pre-labeled; running text is segmented under
// the token budget.
func SectionsFromDocument(doc *corpus.Document, label string, basePage int, seg *segment.Segmenter) []record.Section {
	if basePage <= 0 {
		basePage = 1
	}
	if len(doc.Rows) > 0 {
		sections := make([]record.Section, 0, len(doc.Rows))
		for i, row := range doc.Rows {
			content := strings.TrimSpace(row.Content)
			if len(content) < record.MinSectionChars {
				continue
			}
			chapter := row.Chapter
			if chapter == "" {
				chapter = label
			}
			title := row.Section
			if title == "" {
				title = record.SectionFromContent(content)
			}
			page := row.PageNumber
			if page <= 0 {
				page = basePage + i
			}
			sections = append(sections, record.Section{
				Chapter:    chapter,
				Title:      title,
				Content:    content,
				PageNumber: page,
				Index:      i,
			})
		}
		return sections
	}
	return record.BuildSections(doc.Text, label, basePage, seg)
}

// flattenDocText joins all document text into a single string for hashing.
func flattenDocText(doc *corpus.Document) string {
	if len(doc.Rows) > 0 {
		var sb strings.Builder
		for _, row := range doc.Rows {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(row.Content)
		}
		return sb.String()
	}
	return doc.Text
}
