package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"aird/internal/types"
)

func TestAnalyzeVectorsHealthy(t *testing.T) {
	vectors := [][]float32{
		{0.6, 0.8, 0, 0},
		{0, 0.6, 0.8, 0},
		{0, 0, 0.6, 0.8},
	}
	m := AnalyzeVectors(vectors, 4, false, 1.0)

	require.Equal(t, 3, m.Attempted)
	require.Equal(t, 3, m.Produced)
	require.Equal(t, 1.0, m.DimensionConsistency)
	require.Equal(t, 1.0, m.SuccessRate)
	require.Equal(t, 1.0, m.ValidRate)
	require.Equal(t, 1.0, m.NonZeroRate)
	require.InDelta(t, 1.0, m.NormMean, 1e-6)
	require.Equal(t, 100.0, m.VectorQualityScore)
	require.Equal(t, 100.0, m.ModelHealthScore)
	require.Equal(t, 100.0, m.SemanticSearchReadiness)
}

func TestAnalyzeVectorsGapsAndMismatches(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0, 0},
		nil,                            // failed embedding
		{1, 0, 0},                      // wrong width
		{float32(math.NaN()), 0, 0, 0}, // invalid
		{0, 0, 0, 0},                   // all-zero
	}
	m := AnalyzeVectors(vectors, 4, true, 0)

	require.Equal(t, 5, m.Attempted)
	require.Equal(t, 4, m.Produced)
	require.InDelta(t, 0.8, m.SuccessRate, 1e-9)
	require.InDelta(t, 0.75, m.DimensionConsistency, 1e-9) // 3 of 4 produced
	require.InDelta(t, 0.75, m.ValidRate, 1e-9)
	require.InDelta(t, 0.5, m.NonZeroRate, 1e-9)
	require.True(t, m.FallbackMode)
	require.Less(t, m.ModelHealthScore, 70.0)
	require.Less(t, m.SemanticSearchReadiness, 90.0)
}

func TestAnalyzeVectorsEmpty(t *testing.T) {
	m := AnalyzeVectors(nil, 4, false, 0)
	require.Equal(t, 0, m.Attempted)
	require.Equal(t, 0.0, m.VectorQualityScore)
}

func TestFirstSentence(t *testing.T) {
	s, ok := firstSentence("The quick brown fox jumps. Over the lazy dog.")
	require.True(t, ok)
	require.Equal(t, "The quick brown fox jumps", s)

	// Below the minimum query length.
	_, ok = firstSentence("Short. But the rest of the chunk is long enough.")
	require.False(t, ok)

	// Newline ends the sentence too.
	s, ok = firstSentence("A heading line without punctuation\nbody follows here")
	require.True(t, ok)
	require.Equal(t, "A heading line without punctuation", s)
}

func TestBuildRAGQueriesCapsAndSkips(t *testing.T) {
	records := []indexRecord{
		{pointID: 1, record: types.ChunkRecord{Text: "This chunk opens with a usable sentence. More text."}},
		{pointID: 2, record: types.ChunkRecord{Text: "Tiny. And then some trailing content follows."}},
		{pointID: 3, record: types.ChunkRecord{Text: "Another perfectly serviceable opening sentence here. Body."}},
	}
	queries, skipped := buildRAGQueries(records, 2)
	require.Len(t, queries, 2)
	require.Equal(t, 1, skipped)
	require.Equal(t, uint64(1), queries[0].pointID)
	require.Equal(t, uint64(3), queries[1].pointID)
}

func TestChunkDistribution(t *testing.T) {
	dist := ChunkDistribution([]types.ChunkMetrics{
		{AITrustScore: 10}, {AITrustScore: 30}, {AITrustScore: 60}, {AITrustScore: 60}, {AITrustScore: 95},
	})
	require.Equal(t, 1, dist["0-24"])
	require.Equal(t, 1, dist["25-49"])
	require.Equal(t, 2, dist["50-74"])
	require.Equal(t, 1, dist["75-100"])
}
