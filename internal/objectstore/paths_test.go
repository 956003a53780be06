package objectstore

import "testing"

func TestSafeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"my file (1).txt", "my_file_1_.txt"},
		{"a///b", "a_b"},
		{"___", "file"},
		{"", "file"},
		{"Ünïcode–name", "n_code_name"},
	}
	for _, c := range cases {
		if got := SafeFilename(c.in); got != c.want {
			t.Errorf("SafeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSafeFilenameIdempotent(t *testing.T) {
	for _, in := range []string{"a b c.txt", "x__y", "reporté.pdf", ""} {
		once := SafeFilename(in)
		if twice := SafeFilename(once); twice != once {
			t.Errorf("SafeFilename not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestScopeKeys(t *testing.T) {
	s := Scope{Workspace: 7, Product: 42, Version: 3}
	if got, want := s.RawTextKey("doc one"), "ws/7/prod/42/v/3/raw/doc_one.txt"; got != want {
		t.Errorf("RawTextKey = %q, want %q", got, want)
	}
	if got, want := s.ProcessedKey("doc one"), "ws/7/prod/42/v/3/clean/doc_one.jsonl"; got != want {
		t.Errorf("ProcessedKey = %q, want %q", got, want)
	}
	if got, want := s.MetricsKey(), "ws/7/prod/42/v/3/clean/metrics.json"; got != want {
		t.Errorf("MetricsKey = %q, want %q", got, want)
	}
	if got, want := s.ManifestKey("doc one"), "ws/7/prod/42/v/3/raw/doc_one.manifest.json"; got != want {
		t.Errorf("ManifestKey = %q, want %q", got, want)
	}
	if got, want := s.ArtifactKey("trust report.pdf"), "ws/7/prod/42/v/3/artifacts/trust_report.pdf"; got != want {
		t.Errorf("ArtifactKey = %q, want %q", got, want)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()

	if err := s.PutBytes(ctx, "b", "k/one.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	got, err := s.GetBytes(ctx, "b", "k/one.txt")
	if err != nil || string(got) != "hello" {
		t.Fatalf("GetBytes = %q, %v", got, err)
	}

	if _, err := s.GetBytes(ctx, "b", "missing"); err != ErrNotFound {
		t.Fatalf("missing object error = %v, want ErrNotFound", err)
	}

	ok, err := s.ObjectExists(ctx, "b", "k/one.txt")
	if err != nil || !ok {
		t.Fatalf("ObjectExists = %v, %v", ok, err)
	}

	if err := s.CopyObject(ctx, "b", "k/one.txt", "b2", "copied.txt"); err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	infos, err := s.ListObjects(ctx, "b2", "")
	if err != nil || len(infos) != 1 || infos[0].Key != "copied.txt" {
		t.Fatalf("ListObjects after copy = %+v, %v", infos, err)
	}
	if infos[0].Size != 5 {
		t.Fatalf("listed size = %d, want 5", infos[0].Size)
	}
}

func TestMemoryStoreJSON(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()
	in := map[string]any{"a": "b", "n": float64(3)}
	if err := s.PutJSON(ctx, "b", "obj.json", in); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	var out map[string]any
	if err := s.GetJSON(ctx, "b", "obj.json", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out["a"] != "b" || out["n"] != float64(3) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
