// Package extract converts raw document bytes into plain text. PDF
// extraction goes through MuPDF and emits per-page markers so downstream
// routing can recognize scanned documents.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"aird/internal/types"
)

// Extractor turns one document format into plain text.
type Extractor interface {
	// Supports reports whether the extractor handles the file extension
	// (lowercase, with leading dot).
	Supports(ext string) bool
	// Extract returns the document's plain text.
	Extract(data []byte) (string, error)
}

// Registry resolves an extractor by filename.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry with the built-in extractors: PDF via
// MuPDF and a passthrough for text-like formats.
func NewRegistry() *Registry {
	return &Registry{extractors: []Extractor{
		&PDFExtractor{},
		&PlainExtractor{},
	}}
}

// Register adds a custom extractor, consulted before the built-ins.
func (r *Registry) Register(e Extractor) {
	r.extractors = append([]Extractor{e}, r.extractors...)
}

// Text extracts plain text from data, choosing the extractor by the
// filename extension.
func (r *Registry) Text(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range r.extractors {
		if e.Supports(ext) {
			text, err := e.Extract(data)
			if err != nil {
				return "", fmt.Errorf("extract %s: %w", filename, err)
			}
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: no extractor for %q", types.ErrConfig, ext)
}

// PlainExtractor passes text-like formats through unchanged.
type PlainExtractor struct{}

func (*PlainExtractor) Supports(ext string) bool {
	switch ext {
	case ".txt", ".md", ".rst", ".csv", ".json", ".jsonl", ".yaml", ".yml", ".xml", ".html", ".log", "":
		return true
	}
	return false
}

func (*PlainExtractor) Extract(data []byte) (string, error) {
	return string(data), nil
}

// PageMarker formats the page separator emitted between PDF pages.
func PageMarker(page int) string {
	return fmt.Sprintf("=== PAGE %d ===", page)
}
