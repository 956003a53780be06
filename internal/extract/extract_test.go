package extract

import (
	"errors"
	"strings"
	"testing"

	"aird/internal/types"
)

func TestPlainPassthrough(t *testing.T) {
	r := NewRegistry()
	got, err := r.Text("notes.md", []byte("# Title\nbody"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "# Title\nbody" {
		t.Fatalf("got %q", got)
	}
}

func TestUnknownExtensionIsConfigError(t *testing.T) {
	_, err := NewRegistry().Text("image.png", []byte{0x89})
	if !errors.Is(err, types.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

type fakeExtractor struct{ out string }

func (f *fakeExtractor) Supports(ext string) bool       { return ext == ".docx" }
func (f *fakeExtractor) Extract([]byte) (string, error) { return f.out, nil }

func TestRegisterTakesPrecedence(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeExtractor{out: "converted"})
	got, err := r.Text("report.docx", []byte("raw"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "converted" {
		t.Fatalf("got %q", got)
	}
}

func TestPageMarkerFormat(t *testing.T) {
	m := PageMarker(7)
	if m != "=== PAGE 7 ===" {
		t.Fatalf("marker = %q", m)
	}
	if !strings.HasPrefix(m, "=== PAGE ") {
		t.Fatal("marker prefix changed; scanned-document routing depends on it")
	}
}
