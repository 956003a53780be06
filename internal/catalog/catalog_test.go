package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aird/internal/types"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestProductLifecycle(t *testing.T) {
	c := openTestCatalog(t)

	p, err := c.CreateProduct(1, "policies", "TECH", types.EmbeddingSpec{Model: "minilm", Dimension: 384})
	require.NoError(t, err)
	require.Equal(t, 1, p.CurrentVersion)
	require.Nil(t, p.PromotedVersion)
	require.Equal(t, "minilm", p.Embedding.Model)

	v, err := c.BumpVersion(p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, v)

	fp := types.Fingerprint{AITrustScore: 72.5, Secure: 95, Completeness: 80}
	require.NoError(t, c.SetFingerprint(p.ID, fp))
	require.NoError(t, c.SetPolicyOutcome(p.ID, types.PolicyResult{
		Status: types.PolicyWarnings, Violations: []string{"weak_metadata(<80)"},
	}))
	require.NoError(t, c.SetPromotedVersion(p.ID, 2))

	got, err := c.GetProduct(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Fingerprint)
	require.Equal(t, 72.5, got.Fingerprint.AITrustScore)
	require.Equal(t, "warnings", got.PolicyStatus)
	require.Equal(t, []string{"weak_metadata(<80)"}, got.PolicyViolations)
	require.NotNil(t, got.PromotedVersion)
	require.Equal(t, 2, *got.PromotedVersion)
}

func TestRawFileUniqueness(t *testing.T) {
	c := openTestCatalog(t)
	p, err := c.CreateProduct(1, "docs", "TECH", types.EmbeddingSpec{})
	require.NoError(t, err)

	f := &RawFile{ProductID: p.ID, Version: 1, Filename: "a.txt", FileStem: "a",
		Bucket: "raw", ObjectKey: "ws/1/prod/1/v/1/raw/a.txt"}
	_, err = c.RegisterRawFile(f)
	require.NoError(t, err)

	// Same (product, version, stem) must be rejected.
	dup := *f
	dup.ID = 0
	_, err = c.RegisterRawFile(&dup)
	require.Error(t, err)

	// Same stem at a new version is fine.
	next := *f
	next.ID = 0
	next.Version = 2
	_, err = c.RegisterRawFile(&next)
	require.NoError(t, err)

	require.NoError(t, c.SetRawFileStatusByStem(p.ID, 1, "a", RawProcessed))
	files, err := c.ListRawFiles(p.ID, 1)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, RawProcessed, files[0].Status)
}

func TestRunStateMachine(t *testing.T) {
	c := openTestCatalog(t)
	p, err := c.CreateProduct(1, "docs", "TECH", types.EmbeddingSpec{})
	require.NoError(t, err)

	run, err := c.CreateRun(p.ID, 1, "dag-123")
	require.NoError(t, err)
	require.Equal(t, RunQueued, run.Status)
	require.Nil(t, run.StartedAt)

	require.NoError(t, c.StartRun(run.ID))
	run, err = c.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, RunRunning, run.Status)
	require.NotNil(t, run.StartedAt)

	// Non-terminal finish is rejected.
	require.Error(t, c.FinishRun(run.ID, RunRunning))

	require.NoError(t, c.FinishRun(run.ID, RunFailedPolicy))
	run, err = c.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, RunFailedPolicy, run.Status)
	require.NotNil(t, run.FinishedAt)

	require.NoError(t, c.SetRunEmbeddingModel(run.ID, "minilm", 384))
	run, err = c.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, "minilm", run.EmbeddingModel)
	require.Equal(t, 384, run.EmbeddingDimension)

	last, err := c.LastRunForVersion(p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, run.ID, last.ID)
}

func TestArtifactRegistryAndLineage(t *testing.T) {
	c := openTestCatalog(t)
	p, err := c.CreateProduct(1, "docs", "TECH", types.EmbeddingSpec{})
	require.NoError(t, err)
	run, err := c.CreateRun(p.ID, 1, "")
	require.NoError(t, err)

	jsonl := &Artifact{RunID: run.ID, WorkspaceID: 1, ProductID: p.ID, Version: 1,
		StageName: "preprocess", ArtifactType: "jsonl", ArtifactName: "a.jsonl",
		Bucket: "clean", ObjectKey: "k1"}
	jsonlID, err := c.RegisterArtifact(jsonl)
	require.NoError(t, err)

	metrics := &Artifact{RunID: run.ID, WorkspaceID: 1, ProductID: p.ID, Version: 1,
		StageName: "score", ArtifactType: "json", ArtifactName: "metrics.json",
		Bucket: "clean", ObjectKey: "k2",
		InputArtifacts: []ArtifactRef{{ArtifactID: jsonlID, Stage: "preprocess", Name: "a.jsonl"}}}
	metricsID, err := c.RegisterArtifact(metrics)
	require.NoError(t, err)

	report := &Artifact{RunID: run.ID, WorkspaceID: 1, ProductID: p.ID, Version: 1,
		StageName: "report", ArtifactType: "pdf", ArtifactName: "trust.pdf",
		Bucket: "exports", ObjectKey: "k3",
		InputArtifacts: []ArtifactRef{{ArtifactID: metricsID, Stage: "score", Name: "metrics.json"}}}
	reportID, err := c.RegisterArtifact(report)
	require.NoError(t, err)

	up, err := c.Lineage(reportID)
	require.NoError(t, err)
	require.Len(t, up, 2)
	ids := []int64{up[0].ID, up[1].ID}
	require.ElementsMatch(t, []int64{jsonlID, metricsID}, ids)
}

func TestMetricsArtifactSingleActive(t *testing.T) {
	c := openTestCatalog(t)
	p, err := c.CreateProduct(1, "docs", "TECH", types.EmbeddingSpec{})
	require.NoError(t, err)
	run, err := c.CreateRun(p.ID, 1, "")
	require.NoError(t, err)

	mk := func(key string) int64 {
		id, err := c.RegisterArtifact(&Artifact{RunID: run.ID, WorkspaceID: 1,
			ProductID: p.ID, Version: 1, StageName: "score", ArtifactType: "json",
			ArtifactName: "metrics.json", Bucket: "clean", ObjectKey: key})
		require.NoError(t, err)
		return id
	}
	first := mk("m1")
	second := mk("m2")

	a1, err := c.GetArtifact(first)
	require.NoError(t, err)
	require.Equal(t, ArtifactArchived, a1.Status)

	a2, err := c.GetArtifact(second)
	require.NoError(t, err)
	require.Equal(t, ArtifactActive, a2.Status)
}

func TestReaperPurgesPastRetention(t *testing.T) {
	c := openTestCatalog(t)
	p, err := c.CreateProduct(1, "docs", "TECH", types.EmbeddingSpec{})
	require.NoError(t, err)
	run, err := c.CreateRun(p.ID, 1, "")
	require.NoError(t, err)

	id, err := c.RegisterArtifact(&Artifact{RunID: run.ID, WorkspaceID: 1,
		ProductID: p.ID, Version: 1, StageName: "preprocess", ArtifactType: "jsonl",
		ArtifactName: "x.jsonl", Bucket: "clean", ObjectKey: "kx", Retention: Retain30d})
	require.NoError(t, err)
	require.NoError(t, c.SoftDeleteArtifact(id))

	var removed []string
	remove := func(bucket, key string) error {
		removed = append(removed, bucket+"/"+key)
		return nil
	}

	// Inside the window: nothing purged.
	n, err := c.ReapExpired(time.Now().Add(24*time.Hour), remove)
	require.NoError(t, err)
	require.Zero(t, n)

	// Past the window: purged and object removed.
	n, err = c.ReapExpired(time.Now().Add(31*24*time.Hour), remove)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"clean/kx"}, removed)

	a, err := c.GetArtifact(id)
	require.NoError(t, err)
	require.Equal(t, ArtifactPurged, a.Status)
}

func TestDeleteProductCascades(t *testing.T) {
	c := openTestCatalog(t)
	p, err := c.CreateProduct(1, "docs", "TECH", types.EmbeddingSpec{})
	require.NoError(t, err)
	_, err = c.RegisterRawFile(&RawFile{ProductID: p.ID, Version: 1, Filename: "a.txt",
		FileStem: "a", Bucket: "raw", ObjectKey: "k"})
	require.NoError(t, err)
	_, err = c.GrantACL(&ACL{UserID: "u1", ProductID: p.ID, AccessType: AccessFull})
	require.NoError(t, err)

	require.NoError(t, c.DeleteProduct(p.ID))

	files, err := c.ListRawFiles(p.ID, 1)
	require.NoError(t, err)
	require.Empty(t, files)
	acls, err := c.ListACLs("u1", p.ID)
	require.NoError(t, err)
	require.Empty(t, acls)
}

func TestGrantACLRejectsUnknownType(t *testing.T) {
	c := openTestCatalog(t)
	p, err := c.CreateProduct(1, "docs", "TECH", types.EmbeddingSpec{})
	require.NoError(t, err)
	_, err = c.GrantACL(&ACL{UserID: "u", ProductID: p.ID, AccessType: "owner"})
	require.Error(t, err)
}
