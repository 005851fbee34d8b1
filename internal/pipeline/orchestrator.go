package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/pedigest/internal/classify"
	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/segment"
	"github.com/dgallion1/pedigest/internal/store"
)

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	seg      *segment.Segmenter
	cls      *classify.Classifier
	embedder embed.Embedder
	store    store.Store
	hashes   *hashIndex
	log      *slog.Logger
	cfg      config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator assembles the pipeline around the given embedder and store.
func NewOrchestrator(cfg config.Config, embedder embed.Embedder, st store.Store, log *slog.Logger) *Orchestrator {
	clsCfg := classify.DefaultConfig()
	clsCfg.MaxKeywords = cfg.MaxKeywords
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		seg:      segment.New(segment.Config{MaxTokens: cfg.MaxChunkTokens}),
		cls:      classify.New(clsCfg),
		embedder: embedder,
		store:    st,
		hashes:   newHashIndex(),
		log:      log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.seg, o.cls, o.embedder, o.store, o.hashes, o.log, WorkerConfig{
				Source:     o.cfg.SourceName,
				BasePage:   o.cfg.BasePage,
				BatchSize:  o.cfg.BatchSize,
				BatchPause: o.cfg.BatchPause,
			})
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Store returns the record store for direct use by API handlers.
func (o *Orchestrator) Store() store.Store {
	return o.store
}

// Embedder returns the embedder for query-time use.
func (o *Orchestrator) Embedder() embed.Embedder {
	return o.embedder
}
