package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"aird/internal/logging"
)

// PDFExtractor extracts per-page text from PDF bytes through MuPDF and
// joins the pages with numbered markers. Pages that yield no text (pure
// image scans) still get their marker so the scanned-document cue
// survives.
type PDFExtractor struct{}

func (*PDFExtractor) Supports(ext string) bool {
	switch ext {
	case ".pdf", ".epub", ".xps":
		return true
	}
	return false
}

func (*PDFExtractor) Extract(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	pages := doc.NumPage()
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		b.WriteString(PageMarker(i + 1))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n\n")
	}

	out := strings.TrimSpace(b.String())
	logging.L(logging.CategoryPipeline).Debugw("pdf extracted", "pages", pages, "chars", len(out))
	return out, nil
}
