package acl

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"aird/internal/catalog"
	"aird/internal/embedding"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

var testChunks = []ChunkMeta{
	{ChunkID: "c1", ProductID: "10", DocumentID: "doc1", FieldName: "answer"},
	{ChunkID: "c2", ProductID: "10", DocumentID: "doc2", FieldName: "question"},
	{ChunkID: "c3", ProductID: "11", DocumentID: "doc2", FieldName: "answer_html"},
	{ChunkID: "c4", ProductID: "11", DocumentID: "doc3", FieldName: "note"},
}

func chunkIDs(chunks []ChunkMeta) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ChunkID
	}
	return out
}

func TestAllowedEmptyGrantsAllowsNothing(t *testing.T) {
	require.Empty(t, Allowed(nil, testChunks))
}

func TestAllowedFullGrant(t *testing.T) {
	grants := []catalog.ACL{{AccessType: catalog.AccessFull}}
	require.Equal(t, []string{"c1", "c2", "c3", "c4"}, chunkIDs(Allowed(grants, testChunks)))
}

func TestAllowedIndexAndDocumentScopes(t *testing.T) {
	grants := []catalog.ACL{
		{AccessType: catalog.AccessIndex, IndexScope: "10"},
		{AccessType: catalog.AccessDocument, DocScope: "doc3"},
	}
	require.Equal(t, []string{"c1", "c2", "c4"}, chunkIDs(Allowed(grants, testChunks)))
}

func TestAllowedFieldSubstringOverlapAndDedupe(t *testing.T) {
	grants := []catalog.ACL{
		// Substring overlap admits both "answer" and "answer_html".
		{AccessType: catalog.AccessField, FieldScope: "Answer"},
		// Overlaps c3; the union must not repeat it.
		{AccessType: catalog.AccessIndex, IndexScope: "11"},
	}
	require.Equal(t, []string{"c1", "c3", "c4"}, chunkIDs(Allowed(grants, testChunks)))
}

func TestAllowedGrantOrderPreserved(t *testing.T) {
	grants := []catalog.ACL{
		{AccessType: catalog.AccessDocument, DocScope: "doc3"},
		{AccessType: catalog.AccessIndex, IndexScope: "10"},
	}
	require.Equal(t, []string{"c4", "c1", "c2"}, chunkIDs(Allowed(grants, testChunks)))
}

func newPlayground(t *testing.T) (*Playground, *catalog.Product) {
	t.Helper()

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	prod, err := cat.CreateProduct(1, "kb", "TECH", types.EmbeddingSpec{Model: "minilm", Dimension: 8})
	require.NoError(t, err)

	store := vectorstore.NewMemoryStore()
	engine := embedding.NewHashEngine(8)
	collection := vectorstore.CollectionName(1, "kb", 1)
	ctx := t.Context()
	require.NoError(t, store.EnsureCollection(ctx, collection, 8))

	payloads := []map[string]any{
		{"chunk_id": "c1", "text": "how to reset a password", "document_id": "DocA", "field_name": "answer", "section": "body"},
		{"chunk_id": "c2", "text": "billing cycle explained", "document_id": "DocB", "field_name": "answer", "section": "body"},
		{"chunk_id": "c3", "text": "api deployment manual", "document_id": "DocC", "field_name": "note", "section": "body"},
	}
	var points []vectorstore.Point
	for i, payload := range payloads {
		payload["product_id"] = "1"
		payload["version"] = 1
		vec, err := engine.Embed(ctx, payload["text"].(string))
		require.NoError(t, err)
		points = append(points, vectorstore.Point{ID: uint64(i + 1), Vector: vec, Payload: payload})
	}
	require.NoError(t, store.UpsertPoints(ctx, collection, points))

	return &Playground{Catalog: cat, Store: store, Engine: engine}, prod
}

func TestQueryNoGrantsReturnsEmpty(t *testing.T) {
	p, _ := newPlayground(t)
	res, err := p.Query(t.Context(), "nobody", 1, "kb", 1, "reset password", 5, 0)
	require.NoError(t, err)
	require.True(t, res.ACLApplied)
	require.Empty(t, res.Hits)
}

func TestQueryFullAccessRetrieves(t *testing.T) {
	p, prod := newPlayground(t)
	_, err := p.Catalog.GrantACL(&catalog.ACL{UserID: "u", ProductID: prod.ID, AccessType: catalog.AccessFull})
	require.NoError(t, err)

	res, err := p.Query(t.Context(), "u", 1, "kb", 1, "how to reset a password", 2, 0)
	require.NoError(t, err)
	require.True(t, res.ACLApplied)
	require.NotEmpty(t, res.Hits)
	// The hash engine is deterministic, so the exact query text wins.
	require.Equal(t, "c1", res.Hits[0].ChunkID)
}

func TestQueryDocumentScopeFiltersHits(t *testing.T) {
	p, prod := newPlayground(t)
	_, err := p.Catalog.GrantACL(&catalog.ACL{
		UserID: "u", ProductID: prod.ID,
		AccessType: catalog.AccessDocument, DocScope: "DocA,DocC",
	})
	require.NoError(t, err)

	res, err := p.Query(t.Context(), "u", 1, "kb", 1, "api deployment manual", 5, 0)
	require.NoError(t, err)
	require.True(t, res.ACLApplied)
	require.Len(t, res.Hits, 2)
	for _, h := range res.Hits {
		doc := h.Payload["document_id"]
		require.Contains(t, []any{"DocA", "DocC"}, doc)
	}
}

func TestQueryScrollScopedToProductVersion(t *testing.T) {
	p, prod := newPlayground(t)
	ctx := t.Context()

	// A chunk from another product sharing the collection would match
	// the document grant; the scoped scroll must never surface it.
	collection := vectorstore.CollectionName(1, "kb", 1)
	vec, err := p.Engine.Embed(ctx, "how to reset a password")
	require.NoError(t, err)
	require.NoError(t, p.Store.UpsertPoints(ctx, collection, []vectorstore.Point{{
		ID: 99, Vector: vec,
		Payload: map[string]any{
			"chunk_id": "foreign", "text": "how to reset a password",
			"document_id": "DocA", "field_name": "answer", "section": "body",
			"product_id": "2", "version": 1,
		},
	}}))

	_, err = p.Catalog.GrantACL(&catalog.ACL{
		UserID: "u", ProductID: prod.ID,
		AccessType: catalog.AccessDocument, DocScope: "DocA",
	})
	require.NoError(t, err)

	res, err := p.Query(ctx, "u", 1, "kb", 1, "how to reset a password", 5, 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.Equal(t, "c1", res.Hits[0].ChunkID)
}

func TestQueryUnknownProduct(t *testing.T) {
	p, _ := newPlayground(t)
	_, err := p.Query(t.Context(), "u", 1, "ghost", 1, "anything", 5, 0)
	require.ErrorIs(t, err, types.ErrInputMissing)
}
