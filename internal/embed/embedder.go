// Package embed generates vector embeddings for record content, either
// through the OpenAI embeddings API or a deterministic mock for offline
// runs, plus the small amount of vector math the stores need.
package embed

import (
	"context"
	"math"
)

// Dimensions of the embedding space used across the system.
const DefaultDimensions = 1536

// Embedder converts text to vectors.
type Embedder interface {
	// Embed converts texts to vectors (batched for efficiency).
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// Name identifies the embedder.
	Name() string
}

// Dot computes the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm computes the L2 norm of a vector.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Normalize returns a unit vector in the same direction. The zero vector
// is returned unchanged.
func Normalize(v []float32) []float32 {
	norm := Norm(v)
	if norm == 0 {
		return v
	}
	result := make([]float32, len(v))
	for i := range v {
		result[i] = v[i] / norm
	}
	return result
}

// CosineSimilarity returns 1 for identical directions, 0 for perpendicular
// or zero vectors, -1 for opposite directions.
func CosineSimilarity(a, b []float32) float32 {
	normA := Norm(a)
	normB := Norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}

// ZeroVector returns an all-zero vector of the given dimensionality,
// the stand-in for content that could not be embedded.
func ZeroVector(dims int) []float32 {
	return make([]float32, dims)
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
