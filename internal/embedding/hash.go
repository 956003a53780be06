package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// HashEngine produces deterministic pseudo-embeddings derived from a
// SHA-256 of the text. Vectors are unit-normalized so cosine distances
// stay in range. It exists so the pipeline can complete offline; results
// carry a fallback flag and are not suitable for production retrieval.
type HashEngine struct {
	dimensions int
}

// NewHashEngine creates a deterministic local engine of the given width.
func NewHashEngine(dimensions int) *HashEngine {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEngine{dimensions: dimensions}
}

// Embed derives a unit vector from the text digest. Identical texts map
// to identical vectors.
func (e *HashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	seed := sha256.Sum256([]byte(text))

	vec := make([]float32, e.dimensions)
	var block [32]byte = seed
	var norm float64
	for i := 0; i < e.dimensions; i++ {
		word := i % 8
		if i > 0 && word == 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.BigEndian.Uint32(block[word*4 : word*4+4])
		// Map to [-1, 1).
		v := float64(int64(bits)-math.MaxInt32) / math.MaxInt32
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *HashEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the dimensionality of embeddings.
func (e *HashEngine) Dimensions() int {
	return e.dimensions
}

// Name returns the engine name.
func (e *HashEngine) Name() string {
	return fmt.Sprintf("hash:%d", e.dimensions)
}
