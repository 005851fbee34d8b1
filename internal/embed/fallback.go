package embed

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Compile-time interface check.
var _ Embedder = (*Fallback)(nil)

// Fallback wraps an Embedder so that a failed batch degrades to zero
// vectors instead of failing the run. Failures are counted for reporting.
type Fallback struct {
	inner    Embedder
	logger   *slog.Logger
	failures atomic.Int64
}

// NewFallback wraps inner with zero-vector degradation.
func NewFallback(inner Embedder, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{inner: inner, logger: logger}
}

func (f *Fallback) Name() string    { return f.inner.Name() + "+fallback" }
func (f *Fallback) Dimensions() int { return f.inner.Dimensions() }

// Embed delegates to the wrapped embedder. On error it logs a warning and
// substitutes a zero vector per input, so callers always get len(texts)
// vectors back.
func (f *Fallback) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := f.inner.Embed(ctx, texts)
	if err == nil {
		return vectors, nil
	}

	f.failures.Add(int64(len(texts)))
	f.logger.Warn("embedding failed, using zero vectors",
		"embedder", f.inner.Name(),
		"batch_size", len(texts),
		"error", err)

	vectors = make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = ZeroVector(f.inner.Dimensions())
	}
	return vectors, nil
}

// Failures reports how many texts have fallen back to zero vectors.
func (f *Fallback) Failures() int64 {
	return f.failures.Load()
}
