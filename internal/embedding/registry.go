// Package embedding generates chunk vectors for indexing. A model
// registry maps short model ids to their provider and dimension, and a
// Generator batches texts adaptively by dimension with a deterministic
// local fallback when no provider is reachable.
package embedding

import (
	"fmt"

	"aird/internal/types"
)

// Provider families a model can belong to.
const (
	ProviderSentenceTransformers = "sentence_transformers"
	ProviderOpenAI               = "openai"
	ProviderHuggingFace          = "huggingface"
	ProviderCustom               = "custom"
)

// ModelInfo describes one registered embedding model.
type ModelInfo struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	Dimension int    `json:"dimension"`
	// RemoteName is the provider-side model identifier.
	RemoteName string `json:"remote_name"`
}

var registry = map[string]ModelInfo{
	"minilm": {ID: "minilm", Provider: ProviderSentenceTransformers, Dimension: 384,
		RemoteName: "all-MiniLM-L6-v2"},
	"mpnet": {ID: "mpnet", Provider: ProviderSentenceTransformers, Dimension: 768,
		RemoteName: "all-mpnet-base-v2"},
	"openai": {ID: "openai", Provider: ProviderOpenAI, Dimension: 1536,
		RemoteName: "text-embedding-3-small"},
	"gemini": {ID: "gemini", Provider: ProviderCustom, Dimension: 768,
		RemoteName: "gemini-embedding-001"},
	"embeddinggemma": {ID: "embeddinggemma", Provider: ProviderCustom, Dimension: 768,
		RemoteName: "embeddinggemma"},
}

// LookupModel resolves a registry id. Unknown ids are a configuration
// error so a typo fails before any chunk is embedded.
func LookupModel(id string) (ModelInfo, error) {
	m, ok := registry[id]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: unknown embedding model %q", types.ErrConfig, id)
	}
	return m, nil
}

// RegisterModel adds or replaces a registry entry, for custom deployments.
func RegisterModel(m ModelInfo) error {
	if m.ID == "" || m.Dimension <= 0 {
		return fmt.Errorf("%w: embedding model needs id and positive dimension", types.ErrConfig)
	}
	if m.Provider == "" {
		m.Provider = ProviderCustom
	}
	registry[m.ID] = m
	return nil
}

// Spec returns the EmbeddingSpec for a registry id, honoring an explicit
// dimension override when the deployment truncates or pads vectors.
func Spec(id string, dimensionOverride int) (types.EmbeddingSpec, error) {
	m, err := LookupModel(id)
	if err != nil {
		return types.EmbeddingSpec{}, err
	}
	dim := m.Dimension
	if dimensionOverride > 0 {
		dim = dimensionOverride
	}
	return types.EmbeddingSpec{Model: m.ID, Dimension: dim}, nil
}

// BatchSize returns how many texts to embed per request for a given
// vector dimension. Wider vectors mean bigger responses, so the batch
// shrinks as the dimension grows.
func BatchSize(dimension int) int {
	switch {
	case dimension >= 1024:
		return 3
	case dimension >= 768:
		return 15
	default:
		return 100
	}
}
