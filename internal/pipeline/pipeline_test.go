package pipeline

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"aird/internal/catalog"
	"aird/internal/config"
	"aird/internal/embedding"
	"aird/internal/extract"
	"aird/internal/objectstore"
	"aird/internal/playbook"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

const techDoc = `# Installation Guide

The service installs from a single static binary and reads its settings
from a YAML file in the working directory. Start it once to generate the
default configuration, then edit the storage section to point at your
bucket endpoint before restarting.

# Operations

Routine operation needs no manual intervention. The scheduler retries
transient failures with exponential backoff and records every attempt in
the run ledger, so operators only review runs that end in a failed state.
`

const piiDoc = `# Customer Records

Applicant one uses 123-45-6789 as an identifier. A second record lists
987-65-4321 and a third lists 111-22-3333. Further rows carry
222-33-4444, 333-44-5555, and 444-55-6666 in the same column.
`

// newTestRuntime builds a runtime on in-memory stores, a temp sqlite
// catalog, and the deterministic hash engine.
func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	cfg := config.Default()
	cfg.Pipeline.PlaybookDir = "../../playbooks"
	cfg.Pipeline.ScoringWeightsPath = ""
	// Pin the non-security thresholds low so the tests control the
	// policy verdict through the Secure dimension alone.
	cfg.Pipeline.MinTrustScore = 1
	cfg.Pipeline.MinSecure = 1
	cfg.Pipeline.MinMetadataPresence = 1
	cfg.Pipeline.MinKBReady = 1

	return &Runtime{
		Catalog:   cat,
		Objects:   objectstore.NewMemoryStore(),
		Vectors:   vectorstore.NewMemoryStore(),
		Playbooks: playbook.NewLoader(cfg.Pipeline.PlaybookDir),
		Extract:   extract.NewRegistry(),
		Config:    &cfg,
		NewEngine: func(spec types.EmbeddingSpec) (embedding.Engine, error) {
			dim := spec.Dimension
			if dim <= 0 {
				dim = 8
			}
			return embedding.NewHashEngine(dim), nil
		},
	}
}

func newTestProduct(t *testing.T, rt *Runtime) *catalog.Product {
	t.Helper()
	prod, err := rt.Catalog.CreateProduct(1, "handbook", "TECH",
		types.EmbeddingSpec{Model: "minilm", Dimension: 8})
	require.NoError(t, err)
	return prod
}

func TestIngestTextFile(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)
	ctx := t.Context()

	raw, err := Ingest(ctx, rt, prod, 1, "User Guide.txt", []byte(techDoc), "upload")
	require.NoError(t, err)
	require.Equal(t, "User_Guide", raw.FileStem)
	require.Equal(t, catalog.RawIngested, raw.Status)

	view := &View{
		Store:     rt.Objects,
		RawBucket: rt.Config.Storage.RawBucket,
		Bucket:    rt.Config.Storage.CleanBucket,
		Scope:     objectstore.Scope{Workspace: 1, Product: prod.ID, Version: 1},
		Extract:   rt.Extract,
	}
	text, err := view.GetRawText(ctx, raw.FileStem)
	require.NoError(t, err)
	require.Equal(t, techDoc, text)

	// Same stem, same version: the catalog uniqueness constraint rejects it.
	_, err = Ingest(ctx, rt, prod, 1, "User Guide.txt", []byte(techDoc), "upload")
	require.Error(t, err)
}

func TestIngestEmptyFile(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)
	_, err := Ingest(t.Context(), rt, prod, 1, "empty.txt", nil, "upload")
	require.ErrorIs(t, err, types.ErrInputMissing)
}

func TestFullRunSucceeds(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)
	ctx := t.Context()

	_, err := Ingest(ctx, rt, prod, 1, "guide.txt", []byte(techDoc), "upload")
	require.NoError(t, err)

	run, err := NewRunner(rt).Run(ctx, prod.ID, 1, RunOptions{DagID: "test"})
	require.NoError(t, err)
	require.Equal(t, catalog.RunSucceeded, run.Status)

	final, err := rt.Catalog.GetRun(run.ID)
	require.NoError(t, err)
	stages, ok := final.Metrics["aird_stages"].(map[string]any)
	require.True(t, ok)
	for _, name := range Order {
		entry, ok := stages[name].(map[string]any)
		require.True(t, ok, "stage %s missing from run metrics", name)
		require.Equal(t, "succeeded", entry["status"], "stage %s", name)
	}

	// Embedding config is recorded for later runs of the version.
	require.Equal(t, "minilm", final.EmbeddingModel)
	require.Equal(t, 8, final.EmbeddingDimension)

	// The versioned collection holds the chunk points.
	collection := vectorstore.CollectionName(1, "handbook", 1)
	info, err := rt.Vectors.GetCollectionInfo(ctx, collection)
	require.NoError(t, err)
	require.Greater(t, info.PointsCount, uint64(0))

	// Fingerprint carries both the content and the vector dimensions.
	got, err := rt.Catalog.GetProduct(prod.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Fingerprint)
	require.Greater(t, got.Fingerprint.AITrustScore, 1.0)
	require.Greater(t, got.Fingerprint.SemanticSearchReadiness, 50.0)
	require.Equal(t, string(types.PolicyPassed), got.PolicyStatus)

	// Deliverables landed in the exports bucket under the artifacts
	// prefix; the metrics stay with the clean data.
	scope := objectstore.Scope{Workspace: 1, Product: prod.ID, Version: 1}
	for _, name := range []string{"validation.csv", "trust_report.pdf", "fingerprint.json", "optimizer_suggestion.json"} {
		exists, err := rt.Objects.ObjectExists(ctx, rt.Config.Storage.ExportsBucket, scope.ArtifactKey(name))
		require.NoError(t, err)
		require.True(t, exists, "artifact %s missing", name)
	}
	exists, err := rt.Objects.ObjectExists(ctx, rt.Config.Storage.CleanBucket, scope.MetricsKey())
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRunHonorsDisabledReportStages(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Config.Pipeline.EnableValidation = false
	rt.Config.Pipeline.EnablePDFReports = false
	prod := newTestProduct(t, rt)
	ctx := t.Context()

	_, err := Ingest(ctx, rt, prod, 1, "guide.txt", []byte(techDoc), "upload")
	require.NoError(t, err)

	run, err := NewRunner(rt).Run(ctx, prod.ID, 1, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, catalog.RunSucceeded, run.Status)

	final, err := rt.Catalog.GetRun(run.ID)
	require.NoError(t, err)
	stages := final.Metrics["aird_stages"].(map[string]any)
	require.NotContains(t, stages, StageValidation)
	require.NotContains(t, stages, StageReporting)

	scope := objectstore.Scope{Workspace: 1, Product: prod.ID, Version: 1}
	for _, name := range []string{"validation.csv", "trust_report.pdf"} {
		exists, err := rt.Objects.ObjectExists(ctx, rt.Config.Storage.ExportsBucket, scope.ArtifactKey(name))
		require.NoError(t, err)
		require.False(t, exists, "artifact %s written by a disabled stage", name)
	}
}

func TestRunDeduplicatesRepeatedContent(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Config.Pipeline.EnableDeduplication = true
	prod := newTestProduct(t, rt)
	ctx := t.Context()

	// Two files with identical content; stems sort alpha before copy, so
	// alpha's chunks win and every chunk of copy is a duplicate.
	_, err := Ingest(ctx, rt, prod, 1, "alpha.txt", []byte(techDoc), "upload")
	require.NoError(t, err)
	_, err = Ingest(ctx, rt, prod, 1, "copy.txt", []byte(techDoc), "upload")
	require.NoError(t, err)

	run, err := NewRunner(rt).Run(ctx, prod.ID, 1, RunOptions{
		Stages: []string{StagePreprocess},
	})
	require.NoError(t, err)
	require.Equal(t, catalog.RunSucceeded, run.Status)

	final, err := rt.Catalog.GetRun(run.ID)
	require.NoError(t, err)
	stages := final.Metrics["aird_stages"].(map[string]any)
	entry := stages[StagePreprocess].(map[string]any)
	require.Equal(t, "succeeded", entry["status"])

	metrics := entry["metrics"].(map[string]any)
	require.Equal(t, float64(1), metrics["processed_files"])
	require.Greater(t, metrics["duplicate_chunks_removed"], float64(0))
}

func TestRunFailsPolicyOnPII(t *testing.T) {
	rt := newTestRuntime(t)
	// Secure threshold back at the promotion bar.
	rt.Config.Pipeline.MinSecure = 90
	prod := newTestProduct(t, rt)
	ctx := t.Context()

	_, err := Ingest(ctx, rt, prod, 1, "records.txt", []byte(piiDoc), "upload")
	require.NoError(t, err)

	run, err := NewRunner(rt).Run(ctx, prod.ID, 1, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, catalog.RunFailedPolicy, run.Status)

	got, err := rt.Catalog.GetProduct(prod.ID)
	require.NoError(t, err)
	require.Equal(t, string(types.PolicyFailed), got.PolicyStatus)
	require.Contains(t, strings.Join(got.PolicyViolations, " "), "security_not_full")

	// The optimizer reacts to the security violation.
	finalRun, err := rt.Catalog.GetRun(run.ID)
	require.NoError(t, err)
	stages := finalRun.Metrics["aird_stages"].(map[string]any)
	opt := stages[StageOptimizer].(map[string]any)["metrics"].(map[string]any)
	tweaks := opt["config_tweaks"].(map[string]any)
	require.Equal(t, true, tweaks["redaction_strict"])
}

func TestRunWithNoFilesSkipsAndSucceeds(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)

	run, err := NewRunner(rt).Run(t.Context(), prod.ID, 1, RunOptions{
		Stages: []string{StagePreprocess},
	})
	require.NoError(t, err)
	// A skipped stage is not a failure; policy has no verdict yet.
	require.Equal(t, catalog.RunSucceeded, run.Status)

	final, err := rt.Catalog.GetRun(run.ID)
	require.NoError(t, err)
	stages := final.Metrics["aird_stages"].(map[string]any)
	entry := stages[StagePreprocess].(map[string]any)
	require.Equal(t, "skipped", entry["status"])
}

func TestPromoteAfterRun(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)
	ctx := t.Context()

	_, err := Ingest(ctx, rt, prod, 1, "guide.txt", []byte(techDoc), "upload")
	require.NoError(t, err)
	_, err = NewRunner(rt).Run(ctx, prod.ID, 1, RunOptions{})
	require.NoError(t, err)

	alias, err := Promote(ctx, rt, prod.ID, 1)
	require.NoError(t, err)
	require.Equal(t, vectorstore.AliasName(1, "handbook"), alias)

	target, err := rt.Vectors.GetProdAliasCollection(ctx, alias)
	require.NoError(t, err)
	require.Equal(t, vectorstore.CollectionName(1, "handbook", 1), target)

	got, err := rt.Catalog.GetProduct(prod.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PromotedVersion)
	require.Equal(t, 1, *got.PromotedVersion)
}

func TestPromoteRefusesMissingCollection(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)
	_, err := Promote(t.Context(), rt, prod.ID, 1)
	require.ErrorIs(t, err, types.ErrInputMissing)
}

func TestPromoteRefusesEmptyCollection(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)
	ctx := t.Context()

	collection := vectorstore.CollectionName(1, "handbook", 1)
	require.NoError(t, rt.Vectors.EnsureCollection(ctx, collection, 8))

	_, err := Promote(ctx, rt, prod.ID, 1)
	require.ErrorIs(t, err, types.ErrIntegrity)
}

func TestTrackerCompletionList(t *testing.T) {
	rt := newTestRuntime(t)
	prod := newTestProduct(t, rt)
	run, err := rt.Catalog.CreateRun(prod.ID, 1, "test")
	require.NoError(t, err)

	tr := NewTracker(rt.Catalog, run.ID)
	ok := types.StageResult{StageName: StagePreprocess, Status: types.StageSucceeded, Metrics: map[string]any{}}
	require.NoError(t, tr.Record(ok))

	completed, err := tr.Completed()
	require.NoError(t, err)
	require.Equal(t, []string{StagePreprocess}, completed)

	// A later failure of the same stage removes it from the list.
	bad := ok
	bad.Status = types.StageFailed
	bad.Error = "boom"
	require.NoError(t, tr.Record(bad))

	completed, err = tr.Completed()
	require.NoError(t, err)
	require.Empty(t, completed)
}

func TestResolveQuerySpecStrictConflict(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := t.Context()

	collection := "ws_1__handbook__v_1"
	require.NoError(t, rt.Vectors.EnsureCollection(ctx, collection, 16))

	_, err := ResolveQuerySpec(ctx, rt, types.EmbeddingSpec{Model: "minilm", Dimension: 8}, collection, true)
	require.True(t, types.IsConflict(err))

	// Lenient mode follows the collection's dimension instead.
	spec, err := ResolveQuerySpec(ctx, rt, types.EmbeddingSpec{Model: "minilm", Dimension: 8}, collection, false)
	require.NoError(t, err)
	require.Equal(t, 16, spec.Dimension)
}

func TestScoreLookupFallbackLevels(t *testing.T) {
	l := buildScoreLookup([]types.ChunkMetrics{
		{File: "a.txt", ChunkID: "a_0000", Section: "intro", AITrustScore: 91},
		{File: "a.txt", ChunkID: "a_0001", Section: "intro", AITrustScore: 72},
		{File: "b.txt", ChunkID: "b_0000", Section: "body", AITrustScore: 55},
	})

	// Exact (file, chunk_id).
	require.Equal(t, 72.0, l.lookup("a.txt", "a_0001", "intro"))
	// chunk_id alone, wrong file.
	require.Equal(t, 91.0, l.lookup("other.txt", "a_0000", ""))
	// (file, section) takes the section maximum.
	require.Equal(t, 91.0, l.lookup("a.txt", "missing", "intro"))
	// File maximum as the last resort.
	require.Equal(t, 55.0, l.lookup("b.txt", "missing", "missing"))
	// Nothing known at all.
	require.Equal(t, 0.0, l.lookup("c.txt", "missing", "missing"))
}
