package vectorstore

import (
	"testing"
)

func TestSanitizeCollectionName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Customer FAQ v2!", "customer_faq_v2"},
		{"already_clean", "already_clean"},
		{"__trim__", "trim"},
		{"Ünïcode näme", "n_code_n_me"},
		{"", "product"},
	}
	for _, c := range cases {
		if got := SanitizeCollectionName(c.in); got != c.want {
			t.Errorf("SanitizeCollectionName(%q) = %q, want %q", c.in, got, c.want)
		}
		// Idempotency.
		if got := SanitizeCollectionName(SanitizeCollectionName(c.in)); got != SanitizeCollectionName(c.in) {
			t.Errorf("SanitizeCollectionName not idempotent for %q", c.in)
		}
	}
}

func TestCollectionAndAliasNames(t *testing.T) {
	if got := CollectionName(7, "My Product", 3); got != "ws_7__my_product__v_3" {
		t.Fatalf("CollectionName = %q", got)
	}
	if got := AliasName(7, "My Product"); got != "prod_ws_7__my_product" {
		t.Fatalf("AliasName = %q", got)
	}
}

func TestPointIDStableAndBounded(t *testing.T) {
	a := PointID("prod", "chunk_001", 1)
	b := PointID("prod", "chunk_001", 1)
	if a != b {
		t.Fatalf("PointID not deterministic: %d != %d", a, b)
	}
	if a>>60 != 0 {
		t.Fatalf("PointID %d exceeds 60 bits", a)
	}
	if PointID("prod", "chunk_001", 2) == a {
		t.Fatal("version change should change the point id")
	}
	if PointID("prod", "chunk_002", 1) == a {
		t.Fatal("chunk change should change the point id")
	}
}

func TestMemoryStoreSearchFilterAndThreshold(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, "c", 2); err != nil {
		t.Fatal(err)
	}

	points := []Point{
		{ID: 1, Vector: []float32{1, 0}, Payload: map[string]any{"section": "intro", "chunk_id": "a"}},
		{ID: 2, Vector: []float32{0.9, 0.1}, Payload: map[string]any{"section": "body", "chunk_id": "b"}},
		{ID: 3, Vector: []float32{0, 1}, Payload: map[string]any{"section": "intro", "chunk_id": "c"}},
	}
	if err := s.UpsertPoints(ctx, "c", points); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "c", []float32{1, 0}, 10, 0, &Filter{Match: map[string]any{"section": "intro"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].ID != 1 {
		t.Fatalf("hits = %+v", hits)
	}

	hits, err = s.Search(ctx, "c", []float32{1, 0}, 10, 0.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Score < 0.5 {
			t.Errorf("hit %d below threshold: %v", h.ID, h.Score)
		}
	}

	hits, err = s.Search(ctx, "c", []float32{1, 0}, 10, 0,
		&Filter{MatchAny: map[string][]any{"chunk_id": {"a", "c"}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("IN filter hits = %+v", hits)
	}
}

func TestMemoryStoreScrollPaginates(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, "c", 1); err != nil {
		t.Fatal(err)
	}
	for i := uint64(1); i <= 5; i++ {
		if err := s.UpsertPoints(ctx, "c", []Point{{ID: i, Vector: []float32{1}}}); err != nil {
			t.Fatal(err)
		}
	}

	var seen []uint64
	var offset uint64
	for {
		pts, next, err := s.Scroll(ctx, "c", nil, 2, offset)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range pts {
			seen = append(seen, p.ID)
		}
		if next == 0 {
			break
		}
		offset = next
	}
	if len(seen) != 5 {
		t.Fatalf("scrolled %d points, want 5: %v", len(seen), seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("ids not ascending: %v", seen)
		}
	}
}

func TestMemoryStoreAliasSwap(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	if err := s.EnsureCollection(ctx, "v1", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCollection(ctx, "v2", 1); err != nil {
		t.Fatal(err)
	}

	if err := s.SetProdAlias(ctx, "prod_x", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProdAlias(ctx, "prod_x", "v2"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetProdAliasCollection(ctx, "prod_x")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v2" {
		t.Fatalf("alias target = %q, want v2", got)
	}

	if err := s.SetProdAlias(ctx, "prod_y", "missing"); err == nil {
		t.Fatal("alias to missing collection should fail")
	}
}
