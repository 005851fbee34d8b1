package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusSegmenting JobStatus = "segmenting"
	StatusEmbedding  JobStatus = "embedding"
	StatusUploading  JobStatus = "uploading"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Job tracks the state of a single document ingestion.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`
	Label    string `json:"label,omitempty"`
	IDPrefix string `json:"id_prefix,omitempty"`
	Source   string `json:"source,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalSections     int      `json:"total_sections"`
	SectionsProcessed int      `json:"sections_processed"`
	RecordsEmbedded   int      `json:"records_embedded"`
	RecordsUploaded   int      `json:"records_uploaded"`
	Errors            []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddSectionsProcessed advances the processed-section count.
func (j *Job) AddSectionsProcessed(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SectionsProcessed += n
	j.UpdatedAt = time.Now()
}

// AddRecords records embedded/uploaded record counts.
func (j *Job) AddRecords(embedded, uploaded int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.RecordsEmbedded += embedded
	j.Progress.RecordsUploaded += uploaded
	j.UpdatedAt = time.Now()
}

// SetTotalSections records total section count.
func (j *Job) SetTotalSections(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalSections = n
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	Filename string    `json:"filename"`
	Label    string    `json:"label,omitempty"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Label:    j.Label,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			TotalSections:     j.Progress.TotalSections,
			SectionsProcessed: j.Progress.SectionsProcessed,
			RecordsEmbedded:   j.Progress.RecordsEmbedded,
			RecordsUploaded:   j.Progress.RecordsUploaded,
			Errors:            errs,
		},
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// hashIndex tracks content hashes of documents already ingested so
// resubmissions of the same content are skipped.
type hashIndex struct {
	mu   sync.Mutex
	seen map[string]string
}

func newHashIndex() *hashIndex {
	return &hashIndex{seen: make(map[string]string)}
}

// Seen reports whether the hash was registered and by which job.
func (h *hashIndex) Seen(hash string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	jobID, ok := h.seen[hash]
	return jobID, ok
}

// Add registers a hash against the job that ingested it.
func (h *hashIndex) Add(hash, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[hash] = jobID
}
