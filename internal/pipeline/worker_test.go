package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/pedigest/internal/classify"
	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/record"
	"github.com/dgallion1/pedigest/internal/segment"
	"github.com/dgallion1/pedigest/internal/store"
)

const feverText = `Fever in infants younger than three months requires a full sepsis evaluation including blood and urine cultures. Empiric antibiotic therapy with ampicillin and gentamicin is recommended pending culture results.

Acetaminophen dosing for children is 15 mg/kg per dose every four to six hours. Ibuprofen may be used in children older than six months at 10 mg/kg per dose.`

const csvData = `chapter,section,page_number,content
Cardiology,Treatment,101,"Management of Kawasaki disease requires intravenous immunoglobulin within ten days of fever onset."
Neurology,Diagnosis,205,"Evaluation of febrile seizures includes a careful history and neurologic examination of the child."
`

func newTestWorker(t *testing.T, sink store.Sink, cfg WorkerConfig) *Worker {
	t.Helper()
	seg := segment.New(segment.Config{MaxTokens: 80})
	cls := classify.New(classify.DefaultConfig())
	emb := embed.NewMockEmbedder(8, 42)
	w := NewWorker(seg, cls, emb, sink, newHashIndex(), slog.Default(), cfg)
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func newJob(id, filename string, data []byte) *Job {
	job := &Job{
		ID:        id,
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	job.SetFileData(data)
	return job
}

// flakySink fails the first N inserts with a retryable error, then
// delegates to the wrapped memory store.
type flakySink struct {
	*store.Memory
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakySink) Insert(ctx context.Context, records []record.Record) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return &store.RetryableError{StatusCode: 429, Message: "rate limited"}
	}
	return f.Memory.Insert(ctx, records)
}

// failingSink always returns the configured error.
type failingSink struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *failingSink) Insert(context.Context, []record.Record) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.err
}

func (f *failingSink) Count(context.Context) (int, error) { return 0, nil }
func (f *failingSink) Close() error                       { return nil }

// failAfterSink succeeds for the first N inserts, then fails permanently.
type failAfterSink struct {
	*store.Memory
	mu       sync.Mutex
	succeeds int
	calls    int
}

func (f *failAfterSink) Insert(ctx context.Context, records []record.Record) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls > f.succeeds
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Memory.Insert(ctx, records)
}

func TestWorker_ProcessTextFile(t *testing.T) {
	mem := store.NewMemory()
	w := newTestWorker(t, mem, WorkerConfig{Source: "Nelson Textbook of Pediatrics"})
	job := newJob("job-1", "fever_management.txt", []byte(feverText))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors: %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalSections == 0 {
		t.Fatal("expected sections to be produced")
	}
	if snap.Progress.SectionsProcessed != snap.Progress.TotalSections {
		t.Errorf("expected %d sections processed, got %d", snap.Progress.TotalSections, snap.Progress.SectionsProcessed)
	}
	if snap.Progress.RecordsUploaded != snap.Progress.TotalSections {
		t.Errorf("expected %d records uploaded, got %d", snap.Progress.TotalSections, snap.Progress.RecordsUploaded)
	}

	count, err := mem.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != snap.Progress.TotalSections {
		t.Errorf("expected %d stored records, got %d", snap.Progress.TotalSections, count)
	}

	hits, err := mem.KeywordSearch(context.Background(), "sepsis", 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected stored record to match keyword search")
	}
	rec := hits[0].Record
	if rec.ID != "nelson_0001" {
		t.Errorf("expected ID %q, got %q", "nelson_0001", rec.ID)
	}
	if rec.Chapter != "fever management" {
		t.Errorf("expected chapter %q, got %q", "fever management", rec.Chapter)
	}
	if rec.Source != "Nelson Textbook of Pediatrics" {
		t.Errorf("expected source %q, got %q", "Nelson Textbook of Pediatrics", rec.Source)
	}
	if len(rec.Embedding) != 8 {
		t.Errorf("expected 8-dim embedding, got %d", len(rec.Embedding))
	}
}

func TestWorker_LabelOverride(t *testing.T) {
	mem := store.NewMemory()
	w := newTestWorker(t, mem, WorkerConfig{})
	job := newJob("job-label", "chapter12.txt", []byte(feverText))
	job.Label = "Infectious Diseases"

	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected status %q, got %q", StatusCompleted, got)
	}
	hits, err := mem.KeywordSearch(context.Background(), "sepsis", 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected a keyword hit")
	}
	if hits[0].Record.Chapter != "Infectious Diseases" {
		t.Errorf("expected chapter %q, got %q", "Infectious Diseases", hits[0].Record.Chapter)
	}
}

func TestWorker_CSVRows(t *testing.T) {
	mem := store.NewMemory()
	w := newTestWorker(t, mem, WorkerConfig{})
	job := newJob("job-csv", "clinical_rows.csv", []byte(csvData))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors: %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalSections != 2 {
		t.Fatalf("expected 2 sections from 2 rows, got %d", snap.Progress.TotalSections)
	}

	hits, err := mem.KeywordSearch(context.Background(), "kawasaki", 5)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	rec := hits[0].Record
	if rec.ID != "nelson_0001" {
		t.Errorf("expected ID %q, got %q", "nelson_0001", rec.ID)
	}
	if rec.Chapter != "Cardiology" {
		t.Errorf("expected chapter %q, got %q", "Cardiology", rec.Chapter)
	}
	if rec.Section != "Treatment" {
		t.Errorf("expected section %q, got %q", "Treatment", rec.Section)
	}
	if rec.PageNumber != 101 {
		t.Errorf("expected page 101, got %d", rec.PageNumber)
	}
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	mem := store.NewMemory()
	w := newTestWorker(t, mem, WorkerConfig{})

	first := newJob("job-a", "fever_management.txt", []byte(feverText))
	w.Process(context.Background(), first)
	if got := first.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected first job %q, got %q", StatusCompleted, got)
	}
	countAfterFirst, err := mem.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	// Same content under a different filename still hashes identically.
	second := newJob("job-b", "fever_copy.txt", []byte(feverText))
	w.Process(context.Background(), second)
	if got := second.Snapshot().Status; got != StatusDupSkipped {
		t.Fatalf("expected second job %q, got %q", StatusDupSkipped, got)
	}

	count, err := mem.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != countAfterFirst {
		t.Errorf("expected count to stay %d after duplicate, got %d", countAfterFirst, count)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	w := newTestWorker(t, store.NewMemory(), WorkerConfig{})
	job := newJob("job-bad", "notes.xyz", []byte("anything"))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %d", len(snap.Progress.Errors))
	}
}

func TestWorker_NoContent(t *testing.T) {
	w := newTestWorker(t, store.NewMemory(), WorkerConfig{})
	job := newJob("job-empty", "blank.txt", []byte("   \n\n   \n"))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Progress.Errors) == 0 || snap.Progress.Errors[0] != "no extractable content" {
		t.Errorf("expected %q error, got %v", "no extractable content", snap.Progress.Errors)
	}
}

func TestWorker_RetryableUploadRecovers(t *testing.T) {
	sink := &flakySink{Memory: store.NewMemory(), failures: 1}
	w := newTestWorker(t, sink, WorkerConfig{})
	job := newJob("job-retry", "fever_management.txt", []byte(feverText))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors: %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if sink.calls != 2 {
		t.Errorf("expected 2 insert attempts, got %d", sink.calls)
	}
}

func TestWorker_RetryableUploadExhausted(t *testing.T) {
	sink := &failingSink{err: &store.RetryableError{StatusCode: 503, Message: "service unavailable"}}
	w := newTestWorker(t, sink, WorkerConfig{})
	job := newJob("job-exhaust", "fever_management.txt", []byte(feverText))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	// Every batch retries up to MaxRetries times.
	batches := (snap.Progress.TotalSections + 24) / 25
	if sink.calls != batches*MaxRetries {
		t.Errorf("expected %d insert attempts, got %d", batches*MaxRetries, sink.calls)
	}
	if snap.Progress.RecordsUploaded != 0 {
		t.Errorf("expected 0 uploaded records, got %d", snap.Progress.RecordsUploaded)
	}
}

func TestWorker_NonRetryableUploadFails(t *testing.T) {
	sink := &failingSink{err: errors.New("permission denied")}
	w := newTestWorker(t, sink, WorkerConfig{})
	job := newJob("job-denied", "fever_management.txt", []byte(feverText))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	batches := (snap.Progress.TotalSections + 24) / 25
	if sink.calls != batches {
		t.Errorf("expected %d insert attempts without retry, got %d", batches, sink.calls)
	}
}

func TestWorker_PartialUpload(t *testing.T) {
	sink := &failAfterSink{Memory: store.NewMemory(), succeeds: 1}
	w := newTestWorker(t, sink, WorkerConfig{BatchSize: 1})
	job := newJob("job-partial", "fever_management.txt", []byte(feverText))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Progress.TotalSections < 2 {
		t.Fatalf("fixture must produce at least 2 sections, got %d", snap.Progress.TotalSections)
	}
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q (errors: %v)", StatusPartial, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.RecordsUploaded != 1 {
		t.Errorf("expected 1 uploaded record, got %d", snap.Progress.RecordsUploaded)
	}

	count, err := sink.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored record, got %d", count)
	}
}
