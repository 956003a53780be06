package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"aird/internal/types"
)

func TestLoadWeightsDefaults(t *testing.T) {
	w, err := LoadWeights("")
	require.NoError(t, err)
	require.Equal(t, DefaultWeights(), w)

	// Missing file falls back rather than failing.
	w, err = LoadWeights(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Equal(t, DefaultWeights(), w)
}

func TestLoadWeightsNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"completeness":2,"quality":2,"secure":2,"metadata_presence":2,"kb_ready":2}`), 0o644))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	require.InDelta(t, 0.2, w.Completeness, 1e-9)
	require.InDelta(t, 0.2, w.KBReady, 1e-9)
}

func TestLoadWeightsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(`{nope`), 0o644))

	_, err := LoadWeights(path)
	require.ErrorIs(t, err, types.ErrConfig)
}

func TestSecureScorePenalizesPII(t *testing.T) {
	require.Equal(t, 100.0, secureScore("Nothing sensitive in this text at all."))

	withSSN := secureScore("The SSN on file is 123-45-6789 for this account.")
	require.Less(t, withSSN, 100.0)

	// A visible redaction marker halves the penalty.
	redacted := secureScore("The SSN on file is 123-45-6789, others show [redacted].")
	require.Greater(t, redacted, withSSN)
}

func TestScoreChunkDimensions(t *testing.T) {
	rec := types.ChunkRecord{
		ChunkID:    "doc_0000",
		Text:       "Install the binary and edit the configuration before starting the service for the first time.",
		Section:    "Installation",
		DocumentID: "doc",
		Source:     "doc.txt",
		TokenEst:   23,
	}
	m := scoreChunk(rec, 30, 0.5, DefaultWeights())

	require.Equal(t, "doc_0000", m.ChunkID)
	require.Equal(t, 100.0, m.Secure)
	require.Equal(t, 60.0, m.MetadataPresence) // source, section, document_id
	require.Greater(t, m.Completeness, 50.0)
	require.Greater(t, m.AITrustScore, 50.0)
	require.LessOrEqual(t, m.AITrustScore, 100.0)
}

func TestScoreChunkEmptyText(t *testing.T) {
	m := scoreChunk(types.ChunkRecord{ChunkID: "x"}, 30, 0.5, DefaultWeights())
	require.Equal(t, 0.0, m.Quality)
	require.Equal(t, 0.0, m.Completeness)
}
