package pipeline

import (
	"context"

	"aird/internal/logging"
	"aird/internal/types"
)

// FingerprintStage aggregates metrics.json into the product readiness
// fingerprint, weighting each chunk by its token estimate.
type FingerprintStage struct{}

func (*FingerprintStage) Name() string { return StageFingerprint }

func (*FingerprintStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StageFingerprint, sc)
	ctx := context.Background()

	metrics, err := sc.View.GetMetricsJSON(ctx)
	if err != nil {
		return skip(res, "metrics.json missing: "+err.Error())
	}
	if len(metrics) == 0 {
		return skip(res, "metrics.json is empty")
	}

	fp := AggregateFingerprint(metrics)

	if stats, err := sc.Runtime.Catalog.PreprocessingStats(sc.Product.ID); err == nil && stats != nil {
		if rate, ok := asFloat(stats["mid_sentence_boundary_rate"]); ok {
			fp.ChunkBoundaryQuality = clamp100((1 - rate) * 100)
		}
	}

	if err := sc.Runtime.Catalog.SetFingerprint(sc.Product.ID, fp); err != nil {
		return fail(res, err)
	}

	key, err := sc.View.PutArtifact(ctx, "fingerprint.json", mustJSON(fp), "application/json")
	if err != nil {
		return fail(res, err)
	}
	res.Artifacts = map[string]string{"fingerprint.json": key}

	res.Metrics["fingerprint"] = fp
	res.Metrics["chunks_aggregated"] = len(metrics)

	logging.L(logging.CategoryFingerprint).Infow("fingerprint computed",
		"chunks", len(metrics), "trust", fp.AITrustScore, "secure", fp.Secure)
	return succeed(res)
}

// AggregateFingerprint computes token-weighted means of every dimension,
// clamped to [0,100]. Chunks without a token estimate weigh 1.
func AggregateFingerprint(metrics []types.ChunkMetrics) types.Fingerprint {
	var fp types.Fingerprint
	var trust, comp, qual, sec, meta, kb, weight float64

	for _, m := range metrics {
		w := float64(m.TokenEst)
		if w <= 0 {
			w = 1
		}
		trust += m.AITrustScore * w
		comp += m.Completeness * w
		qual += m.Quality * w
		sec += m.Secure * w
		meta += m.MetadataPresence * w
		kb += m.KBReady * w
		weight += w
	}
	if weight == 0 {
		return fp
	}

	fp.AITrustScore = clamp100(trust / weight)
	fp.Completeness = clamp100(comp / weight)
	fp.Quality = clamp100(qual / weight)
	fp.Secure = clamp100(sec / weight)
	fp.MetadataPresence = clamp100(meta / weight)
	fp.KBReady = clamp100(kb / weight)
	return fp
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
