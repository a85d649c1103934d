package embeddings

import (
	"context"
	"crypto/md5"
	"math"
)

// HashDimensions is the vector size produced by the hash embedder.
const HashDimensions = 128

// HashEmbedder produces deterministic pseudo-embeddings by expanding an md5
// digest of the text into a normalized vector. It captures no semantics and
// exists so the engine runs with zero API keys and so tests are repeatable.
type HashEmbedder struct{}

// NewHashEmbedder creates a deterministic local embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

func (e *HashEmbedder) Name() string {
	return "hash-md5"
}

func (e *HashEmbedder) Dimensions() int {
	return HashDimensions
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = hashVector(t)
	}
	return vecs, nil
}

func hashVector(text string) []float32 {
	digest := md5.Sum([]byte(text))

	// Tile the 16 digest bytes out to the full dimension.
	raw := make([]float64, HashDimensions)
	var norm float64
	for i := range raw {
		raw[i] = float64(digest[i%len(digest)])
		norm += raw[i] * raw[i]
	}
	norm = math.Sqrt(norm) + 1e-8

	vec := make([]float32, HashDimensions)
	for i, v := range raw {
		vec[i] = float32(v / norm)
	}
	return vec
}
