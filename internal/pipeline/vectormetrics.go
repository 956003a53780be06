package pipeline

import (
	"context"
	"math"
	"sort"
	"strings"

	"aird/internal/embedding"
	"aird/internal/logging"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

// VectorMetrics summarizes the health of one indexing run's vectors.
// Rates are 0..1; the composite scores are 0..100.
type VectorMetrics struct {
	ExpectedDimension    int     `json:"expected_dimension"`
	Attempted            int     `json:"attempted"`
	Produced             int     `json:"produced"`
	DimensionConsistency float64 `json:"dimension_consistency"`
	SuccessRate          float64 `json:"success_rate"`
	ValidRate            float64 `json:"valid_rate"` // NaN/Inf-free
	NonZeroRate          float64 `json:"non_zero_rate"`
	NormMean             float64 `json:"norm_mean"`
	NormMedian           float64 `json:"norm_median"`
	NormStd              float64 `json:"norm_std"`
	NormOutlierRate      float64 `json:"norm_outlier_rate"` // beyond 3 sigma
	FallbackMode         bool    `json:"fallback_mode"`
	ResponseConsistency  float64 `json:"response_consistency"`

	VectorQualityScore      float64 `json:"vector_quality_score"`
	ModelHealthScore        float64 `json:"model_health_score"`
	SemanticSearchReadiness float64 `json:"semantic_search_readiness"`
}

// AnalyzeVectors computes quality statistics over the produced vectors.
// vectors may contain nil entries for failed embeddings.
func AnalyzeVectors(vectors [][]float32, expectedDim int, fallbackMode bool, responseConsistency float64) VectorMetrics {
	m := VectorMetrics{
		ExpectedDimension:   expectedDim,
		Attempted:           len(vectors),
		FallbackMode:        fallbackMode,
		ResponseConsistency: responseConsistency,
	}
	if len(vectors) == 0 {
		return m
	}

	var norms []float64
	dimOK, valid, nonZero := 0, 0, 0
	for _, v := range vectors {
		if v == nil {
			continue
		}
		m.Produced++
		if len(v) == expectedDim {
			dimOK++
		}
		ok, zero := true, true
		var norm float64
		for _, x := range v {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				ok = false
				break
			}
			if f != 0 {
				zero = false
			}
			norm += f * f
		}
		if !ok {
			continue
		}
		valid++
		if !zero {
			nonZero++
		}
		norms = append(norms, math.Sqrt(norm))
	}

	m.SuccessRate = float64(m.Produced) / float64(m.Attempted)
	if m.Produced > 0 {
		m.DimensionConsistency = float64(dimOK) / float64(m.Produced)
		m.ValidRate = float64(valid) / float64(m.Produced)
		m.NonZeroRate = float64(nonZero) / float64(m.Produced)
	}

	if len(norms) > 0 {
		sort.Float64s(norms)
		m.NormMedian = norms[len(norms)/2]
		var sum float64
		for _, n := range norms {
			sum += n
		}
		m.NormMean = sum / float64(len(norms))
		var varSum float64
		for _, n := range norms {
			varSum += (n - m.NormMean) * (n - m.NormMean)
		}
		m.NormStd = math.Sqrt(varSum / float64(len(norms)))
		if m.NormStd > 0 {
			outliers := 0
			for _, n := range norms {
				if math.Abs(n-m.NormMean) > 3*m.NormStd {
					outliers++
				}
			}
			m.NormOutlierRate = float64(outliers) / float64(len(norms))
		}
	}

	normHealth := 1 - m.NormOutlierRate

	m.VectorQualityScore = clamp100(100 * (0.40*m.ValidRate + 0.30*m.NonZeroRate + 0.30*normHealth))

	apiErrorRate := 1 - m.SuccessRate
	fallbackRate := 0.0
	if fallbackMode {
		fallbackRate = 1.0
	}
	dimMismatchRate := 1 - m.DimensionConsistency
	m.ModelHealthScore = clamp100(100 * (0.30*(1-apiErrorRate) +
		0.25*(1-fallbackRate) +
		0.20*(1-dimMismatchRate) +
		0.15*normHealth +
		0.10*responseConsistency))

	m.SemanticSearchReadiness = clamp100(0.25*(m.DimensionConsistency*100) +
		0.35*m.VectorQualityScore +
		0.25*m.ModelHealthScore +
		0.15*(m.SuccessRate*100))
	return m
}

// RAGMetrics reports self-retrieval quality of an indexed collection.
type RAGMetrics struct {
	QueriesRun   int     `json:"queries_run"`
	TopK         int     `json:"top_k"`
	HitRateAtK   float64 `json:"hit_rate_at_k"`
	MAPAtK       float64 `json:"map_at_k"`
	SkippedShort int     `json:"skipped_short"`
}

// ragQuery pairs a self-retrieval query with the point it should find.
type ragQuery struct {
	pointID uint64
	text    string
}

// SelfRetrievalProbe runs the RAG evaluation: for up to maxQueries
// chunks, the first sentence of the chunk becomes the query, and the
// chunk's own point must come back in the top K.
func SelfRetrievalProbe(ctx context.Context, store vectorstore.Store, engine embedding.Engine, collection string, queries []ragQuery, topK int) (RAGMetrics, error) {
	m := RAGMetrics{TopK: topK}
	if topK <= 0 {
		m.TopK = 5
	}

	var hitSum, rankSum float64
	for _, q := range queries {
		vec, err := engine.Embed(ctx, q.text)
		if err != nil {
			logging.L(logging.CategoryIndexing).Warnw("rag probe embed failed", "error", err)
			continue
		}
		hits, err := store.Search(ctx, collection, vec, uint64(m.TopK), 0, nil)
		if err != nil {
			return m, err
		}
		m.QueriesRun++
		for rank, h := range hits {
			if h.ID == q.pointID {
				hitSum++
				rankSum += 1.0 / float64(rank+1)
				break
			}
		}
	}

	if m.QueriesRun > 0 {
		m.HitRateAtK = hitSum / float64(m.QueriesRun)
		m.MAPAtK = rankSum / float64(m.QueriesRun)
	}
	return m, nil
}

// firstSentence extracts the leading sentence of a chunk if it is long
// enough to be a meaningful query.
func firstSentence(text string) (string, bool) {
	text = strings.TrimSpace(text)
	end := len(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			end = i
			break
		}
	}
	s := strings.TrimSpace(text[:end])
	if len(s) < 10 {
		return "", false
	}
	return s, true
}

// buildRAGQueries selects up to maxQueries self-retrieval queries.
func buildRAGQueries(records []indexRecord, maxQueries int) (queries []ragQuery, skippedShort int) {
	if maxQueries <= 0 {
		maxQueries = 20
	}
	for _, rec := range records {
		if len(queries) >= maxQueries {
			break
		}
		s, ok := firstSentence(rec.record.Text)
		if !ok {
			skippedShort++
			continue
		}
		queries = append(queries, ragQuery{pointID: rec.pointID, text: s})
	}
	return queries, skippedShort
}

// consistencyProbe embeds the same text twice and compares the results.
// Deterministic engines score 1.0.
func consistencyProbe(ctx context.Context, engine embedding.Engine, text string) float64 {
	if text == "" {
		return 1.0
	}
	a, err := engine.Embed(ctx, text)
	if err != nil {
		return 0
	}
	b, err := engine.Embed(ctx, text)
	if err != nil {
		return 0
	}
	sim, err := embedding.CosineSimilarity(a, b)
	if err != nil || sim < 0.99 {
		return 0
	}
	return 1.0
}

// ChunkDistribution buckets trust scores for reporting.
func ChunkDistribution(metrics []types.ChunkMetrics) map[string]int {
	dist := map[string]int{"0-24": 0, "25-49": 0, "50-74": 0, "75-100": 0}
	for _, m := range metrics {
		switch {
		case m.AITrustScore < 25:
			dist["0-24"]++
		case m.AITrustScore < 50:
			dist["25-49"]++
		case m.AITrustScore < 75:
			dist["50-74"]++
		default:
			dist["75-100"]++
		}
	}
	return dist
}
