package embedding

import (
	"context"
	"fmt"
	"math"

	"aird/internal/logging"
)

// =============================================================================
// ENGINE INTERFACE
// =============================================================================

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// HealthChecker is an optional interface for engines that can verify the
// backing service is reachable before a long batch run.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// =============================================================================
// FACTORY
// =============================================================================

// EngineConfig selects and configures an embedding backend.
type EngineConfig struct {
	// ModelID is a registry id; it decides dimension and remote name.
	ModelID string

	// APIKey enables the Gemini API backend for custom-provider models.
	APIKey string

	// OllamaEndpoint enables the local Ollama backend when no API key is
	// set. Default "http://localhost:11434".
	OllamaEndpoint string

	// DimensionOverride forces an output dimension differing from the
	// registry entry.
	DimensionOverride int
}

// NewEngine builds the engine for a model id. Custom-provider models with
// an API key use the Gemini API; everything else goes through Ollama.
func NewEngine(cfg EngineConfig) (Engine, error) {
	m, err := LookupModel(cfg.ModelID)
	if err != nil {
		return nil, err
	}
	dim := m.Dimension
	if cfg.DimensionOverride > 0 {
		dim = cfg.DimensionOverride
	}

	log := logging.L(logging.CategoryEmbedding)

	if cfg.APIKey != "" && m.Provider == ProviderCustom {
		log.Infow("creating genai embedding engine", "model", m.RemoteName, "dimension", dim)
		return NewGenAIEngine(cfg.APIKey, m.RemoteName, dim)
	}

	log.Infow("creating ollama embedding engine",
		"endpoint", cfg.OllamaEndpoint, "model", m.RemoteName, "dimension", dim)
	return NewOllamaEngine(cfg.OllamaEndpoint, m.RemoteName, dim)
}

// =============================================================================
// COSINE SIMILARITY UTILITY
// =============================================================================

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i] * b[i])
		aMag += float64(a[i] * a[i])
		bMag += float64(b[i] * b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}
