package playbook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"aird/internal/types"
)

func writePlaybook(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writePlaybook(t, dir, "SPARSE.yaml", "id: SPARSE\n")

	p, err := NewLoader(dir).Load("SPARSE")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Chunking.MaxTokens != 900 {
		t.Errorf("default max_tokens = %d, want 900", p.Chunking.MaxTokens)
	}
	if p.Chunking.Strategy != "fixed_size" {
		t.Errorf("default strategy = %q, want fixed_size", p.Chunking.Strategy)
	}
	if p.RAGEvaluation.RetrievalSettings.TopK != 5 {
		t.Errorf("default top_k = %d, want 5", p.RAGEvaluation.RetrievalSettings.TopK)
	}
	if p.RAGEvaluation.RetrievalSettings.MaxQueries != 20 {
		t.Errorf("default max_queries = %d, want 20", p.RAGEvaluation.RetrievalSettings.MaxQueries)
	}
}

func TestLoadUnknownIDIsConfigError(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load("NOPE")
	if !errors.Is(err, types.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestLoadParsesChunkingAndEval(t *testing.T) {
	dir := t.TempDir()
	writePlaybook(t, dir, "X.yaml", `
id: X
chunking:
  max_tokens: 1400
  overlap: 280
  strategy: semantic
rag_evaluation:
  retrieval_settings:
    top_k: 8
    max_queries: 25
`)
	p, err := NewLoader(dir).Load("X")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cs := p.ChunkSettings()
	if cs.ChunkSize != 1400 || cs.Overlap != 280 || cs.Strategy != "semantic" {
		t.Fatalf("ChunkSettings = %+v", cs)
	}
	if cs.MaxSize != 2800 {
		t.Errorf("MaxSize = %d, want 2800", cs.MaxSize)
	}
}

func TestRoute(t *testing.T) {
	cases := []struct {
		sample, filename, want string
	}{
		{"=== PAGE 1 ===\nsome ocr text", "scan.pdf", IDScanned},
		{"Pursuant to Regulation (EU) 2016/679, the controller shall not process", "gdpr.txt", IDRegulatory},
		{"Install the server and configure the API endpoint via config.yaml", "readme.md", IDTech},
		{"plain prose with no cues at all", "note.txt", IDTech},
	}
	for _, c := range cases {
		if got := Route(c.sample, c.filename); got != c.want {
			t.Errorf("Route(%q, %q) = %q, want %q", c.sample[:20], c.filename, got, c.want)
		}
	}
}
