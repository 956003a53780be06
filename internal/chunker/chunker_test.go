package chunker

import (
	"regexp"
	"strings"
	"testing"

	"aird/internal/types"
)

func TestNormalizeWhitespace(t *testing.T) {
	got := Normalize("a\r\nb\t\tc   d\n\n\n\ne", false)
	want := "a\nb c d\n\ne"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeEnhanced(t *testing.T) {
	got := Normalize("docu-\nment\fnext", true)
	if strings.Contains(got, "-\n") {
		t.Errorf("hyphen break not repaired: %q", got)
	}
	if !strings.Contains(got, "document") {
		t.Errorf("expected repaired word in %q", got)
	}
	if strings.ContainsRune(got, '\f') {
		t.Errorf("form feed survived: %q", got)
	}

	// NFKC folds the ligature ﬁ into "fi".
	if got := Normalize("ﬁle", true); got != "file" {
		t.Errorf("NFKC fold = %q, want file", got)
	}
}

func TestStripNoise(t *testing.T) {
	text := "keep one\nPage 3 of 9\nkeep two"
	got, removed := StripNoise(text, []*regexp.Regexp{regexp.MustCompile(`^Page \d+ of \d+$`)})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if got != "keep one\nkeep two" {
		t.Fatalf("got %q", got)
	}
}

func settings(strategy string) types.ChunkSettings {
	return types.ChunkSettings{ChunkSize: 50, Overlap: 10, MinSize: 5, MaxSize: 100, Strategy: strategy}
}

func TestSplitFixedSizeCoversText(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet. ", 60)
	chunks, stats := Split(text, Options{Settings: settings("fixed_size")})
	if stats.TotalChunks < 2 {
		t.Fatalf("TotalChunks = %d, want >= 2", stats.TotalChunks)
	}
	for i, c := range chunks {
		if c.TokenEst > 100 {
			t.Errorf("chunk %d has %d tokens, exceeds max", i, c.TokenEst)
		}
	}
}

func TestSplitSentenceBoundary(t *testing.T) {
	text := strings.Repeat("First sentence here. Second one follows! Third asks? ", 30)
	chunks, stats := Split(text, Options{Settings: settings("sentence_boundary")})
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want >= 2", len(chunks))
	}
	if stats.MidSentenceBoundaryRate > 0.1 {
		t.Errorf("MidSentenceBoundaryRate = %v, want near zero for sentence strategy", stats.MidSentenceBoundaryRate)
	}
}

func TestSplitParagraphBoundaryKeepsParagraphs(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString(strings.Repeat("Paragraph body text goes here. ", 4))
		b.WriteString("\n\n")
	}
	chunks, _ := Split(strings.TrimSpace(b.String()), Options{Settings: settings("paragraph_boundary")})
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want >= 2", len(chunks))
	}
}

func TestSplitRecursiveHandlesLongRuns(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 200)
	chunks, _ := Split(text, Options{Settings: settings("recursive")})
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want >= 3", len(chunks))
	}
	for i, c := range chunks {
		if c.TokenEst > 100 {
			t.Errorf("chunk %d has %d tokens, exceeds max", i, c.TokenEst)
		}
	}
}

func TestSplitSemanticSections(t *testing.T) {
	text := "Intro line before any heading.\n\n" +
		"ARTICLE 1\n\n" + strings.Repeat("Obligations of the first party. ", 20) + "\n\n" +
		"ARTICLE 2\n\n" + strings.Repeat("Obligations of the second party. ", 20)
	heading := regexp.MustCompile(`^ARTICLE \d+$`)

	chunks, _ := Split(text, Options{
		Settings:        settings("semantic"),
		HeadingPatterns: []*regexp.Regexp{heading},
	})

	sections := map[string]bool{}
	for _, c := range chunks {
		sections[c.Section] = true
	}
	if !sections["ARTICLE 1"] || !sections["ARTICLE 2"] {
		t.Fatalf("sections = %v, want ARTICLE 1 and ARTICLE 2", sections)
	}
	if !sections["body"] {
		t.Errorf("intro text should fall under body, got %v", sections)
	}
}

func TestMergeUndersized(t *testing.T) {
	chunks := []Chunk{
		{Text: strings.Repeat("x", 200), Section: "body", TokenEst: 50},
		{Text: "tiny", Section: "body", TokenEst: 1},
	}
	out := mergeUndersized(chunks, 5)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1 after merge", len(out))
	}
	if !strings.HasSuffix(out[0].Text, "tiny") {
		t.Errorf("merged text missing tail: %q", out[0].Text[len(out[0].Text)-10:])
	}
}

func TestSplitEmptyText(t *testing.T) {
	chunks, stats := Split("", Options{Settings: settings("fixed_size")})
	if len(chunks) != 0 || stats.TotalChunks != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}
