package embed

import (
	"context"
	"math/rand/v2"
	"sync"
)

// Compile-time interface check.
var _ Embedder = (*MockEmbedder)(nil)

// MockEmbedder produces normalized pseudo-random vectors for offline runs
// and tests. Vectors are drawn uniform(-1, 1) and L2-normalized; a fixed
// seed yields a reproducible sequence.
type MockEmbedder struct {
	mu         sync.Mutex
	rng        *rand.Rand
	dimensions int
}

// NewMockEmbedder creates a mock with the given dimensionality and seed.
// dims may be 0 (defaults to 1536).
func NewMockEmbedder(dims int, seed uint64) *MockEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &MockEmbedder{
		rng:        rand.New(rand.NewPCG(seed, seed)),
		dimensions: dims,
	}
}

func (m *MockEmbedder) Name() string    { return "mock" }
func (m *MockEmbedder) Dimensions() int { return m.dimensions }

// Embed returns one normalized random vector per input text.
func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, m.dimensions)
		for j := range v {
			v[j] = float32(m.rng.Float64()*2 - 1)
		}
		vectors[i] = Normalize(v)
	}
	return vectors, nil
}
