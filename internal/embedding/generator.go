package embedding

import (
	"context"

	"aird/internal/logging"
)

// Result carries the vectors for one generation run. Vectors[i] is nil
// when text i could not be embedded; callers decide whether to skip or
// fail on gaps.
type Result struct {
	Vectors      [][]float32
	Embedded     int
	Failed       int
	FallbackMode bool
	EngineName   string
}

// Generator embeds texts in dimension-adaptive batches, retrying failed
// batches one text at a time and optionally degrading to the
// deterministic hash engine when the primary engine is unreachable.
type Generator struct {
	engine        Engine
	batchSize     int
	allowFallback bool
}

// NewGenerator wraps an engine. allowFallback permits degrading to the
// hash engine when a pre-run health check fails.
func NewGenerator(engine Engine, allowFallback bool) *Generator {
	return &Generator{
		engine:        engine,
		batchSize:     BatchSize(engine.Dimensions()),
		allowFallback: allowFallback,
	}
}

// BatchSize reports the batch width the generator will use.
func (g *Generator) BatchSize() int { return g.batchSize }

// Generate embeds all texts. A failing batch is retried text by text so
// one poison chunk costs one vector, not the whole batch.
func (g *Generator) Generate(ctx context.Context, texts []string) (*Result, error) {
	log := logging.L(logging.CategoryEmbedding)

	engine := g.engine
	res := &Result{
		Vectors:    make([][]float32, len(texts)),
		EngineName: engine.Name(),
	}

	if hc, ok := engine.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			if !g.allowFallback {
				return nil, err
			}
			log.Warnw("embedding engine unreachable, using deterministic fallback",
				"engine", engine.Name(), "error", err)
			engine = NewHashEngine(engine.Dimensions())
			res.FallbackMode = true
			res.EngineName = engine.Name()
		}
	}

	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := engine.EmbedBatch(ctx, batch)
		if err == nil {
			for i, v := range vecs {
				res.Vectors[start+i] = v
				res.Embedded++
			}
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Warnw("batch embed failed, retrying per text",
			"batch_start", start, "batch_size", len(batch), "error", err)
		for i, text := range batch {
			v, embErr := engine.Embed(ctx, text)
			if embErr != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warnw("text embed failed, leaving gap", "index", start+i, "error", embErr)
				res.Failed++
				continue
			}
			res.Vectors[start+i] = v
			res.Embedded++
		}
	}

	log.Infow("embedding generation complete",
		"engine", res.EngineName, "embedded", res.Embedded,
		"failed", res.Failed, "fallback_mode", res.FallbackMode)
	return res, nil
}
