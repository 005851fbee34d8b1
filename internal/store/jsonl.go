package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dgallion1/pedigest/internal/record"
)

var _ Sink = (*JSONL)(nil)

// JSONL appends records to a JSON Lines file. It implements only Sink;
// file output has no search side.
type JSONL struct {
	mu    sync.Mutex
	file  *os.File
	enc   *json.Encoder
	count int
}

// NewJSONL opens path for appending, creating it if needed.
func NewJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONL{file: f, enc: enc}, nil
}

// Insert appends one line per record.
func (j *JSONL) Insert(ctx context.Context, records []record.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		j.count++
	}
	return nil
}

// Count reports the number of records appended by this writer.
func (j *JSONL) Count(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count, nil
}

func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
