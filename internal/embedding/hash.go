// Package embedding turns text into fixed-length vectors for the document index.
package embedding

import (
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultDimensions is the vector length used when none is configured.
const DefaultDimensions = 384

// Embedder maps text to a vector of fixed length.
type Embedder interface {
	Embed(text string) []float32
	Dimensions() int
}

// HashEmbedder is a hashed bag-of-words embedder. Each lower-cased,
// whitespace-separated token increments one bucket chosen by hashing the
// token, and the result is L2-normalised.
//
// It is not a semantic model: synonyms share nothing, punctuation stays
// attached to tokens ("pricing?" and "pricing" land in different buckets),
// and distinct tokens can collide in the same bucket. Similarity between
// two texts is roughly their normalised word overlap.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of the given length.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Dimensions returns the vector length.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed returns the normalised token-count vector for text. Text without
// tokens yields the zero vector.
func (e *HashEmbedder) Embed(text string) []float32 {
	counts := make([]float64, e.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		bucket := xxhash.Sum64String(token) % uint64(e.dimensions)
		counts[bucket]++
	}

	var sumSquares float64
	for _, c := range counts {
		sumSquares += c * c
	}

	vec := make([]float32, e.dimensions)
	if sumSquares == 0 {
		return vec
	}

	norm := math.Sqrt(sumSquares)
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}
	return vec
}

// Dot returns the inner product of two vectors of equal length.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
