package chunker

import (
	"regexp"
	"strings"

	"aird/internal/types"
)

// Chunk is one output piece with its detected section.
type Chunk struct {
	Text     string
	Section  string
	TokenEst int
}

// Stats summarizes a split run.
type Stats struct {
	TotalChunks             int
	AvgTokens               int
	MinTokens               int
	MaxTokens               int
	MidSentenceBoundaryRate float64
}

// Options controls a split run. HeadingPatterns drive section detection;
// unmatched text falls under the "body" section.
type Options struct {
	Settings        types.ChunkSettings
	HeadingPatterns []*regexp.Regexp
}

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]?(\s+|$)`)

// Split chunks normalized text according to the configured strategy and
// reports boundary statistics.
func Split(text string, opts Options) ([]Chunk, Stats) {
	s := opts.Settings
	if s.ChunkSize <= 0 {
		s.ChunkSize = 1000
	}
	if s.MaxSize <= 0 {
		s.MaxSize = s.ChunkSize * 2
	}
	if s.MinSize < 0 {
		s.MinSize = 0
	}
	if s.Overlap < 0 {
		s.Overlap = 0
	}
	if s.Overlap >= s.ChunkSize {
		s.Overlap = s.ChunkSize - 1
	}

	var chunks []Chunk
	for _, sec := range splitSections(text, opts.HeadingPatterns) {
		for _, piece := range splitSection(sec.text, s) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, Chunk{Text: piece, Section: sec.title, TokenEst: TokenEstimate(piece)})
		}
	}

	chunks = mergeUndersized(chunks, s.MinSize)
	return chunks, computeStats(chunks)
}

type section struct {
	title string
	text  string
}

// splitSections walks lines and starts a new section at each heading
// match. The heading line stays inside its section so chunks retain it.
func splitSections(text string, headings []*regexp.Regexp) []section {
	if len(headings) == 0 {
		return []section{{title: "body", text: text}}
	}
	var out []section
	cur := section{title: "body"}
	var buf []string

	flush := func() {
		cur.text = strings.TrimSpace(strings.Join(buf, "\n"))
		if cur.text != "" {
			out = append(out, cur)
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		isHeading := false
		for _, re := range headings {
			if re.MatchString(trimmed) {
				isHeading = true
				break
			}
		}
		if isHeading {
			flush()
			cur = section{title: truncateTitle(trimmed)}
		}
		buf = append(buf, line)
	}
	flush()

	if len(out) == 0 {
		return []section{{title: "body", text: text}}
	}
	return out
}

func truncateTitle(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	if s == "" {
		return "body"
	}
	return s
}

func splitSection(text string, s types.ChunkSettings) []string {
	switch s.Strategy {
	case "sentence_boundary":
		return accumulate(splitSentences(text), s, " ")
	case "paragraph_boundary":
		return accumulate(splitParagraphs(text), s, "\n\n")
	case "recursive":
		return recursiveSplit(text, s, []string{"\n\n", "\n", ". ", " "})
	case "semantic":
		// Paragraph accumulation with sentence fallback for paragraphs
		// that alone exceed the chunk budget.
		return accumulate(explodeLongParagraphs(text, s), s, "\n\n")
	default: // fixed_size
		return fixedSplit(text, s)
	}
}

// fixedSplit cuts character windows, preferring a whitespace break near
// the window end.
func fixedSplit(text string, s types.ChunkSettings) []string {
	chunkChars := s.ChunkSize * charsPerToken
	stepChars := (s.ChunkSize - s.Overlap) * charsPerToken
	if stepChars <= 0 {
		stepChars = chunkChars
	}

	var out []string
	for start := 0; start < len(text); start += stepChars {
		end := start + chunkChars
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		// Back off to the nearest whitespace within the last tenth of
		// the window.
		cut := end
		limit := end - chunkChars/10
		for cut > limit && !isSpace(text[cut-1]) {
			cut--
		}
		if cut <= limit {
			cut = end
		}
		out = append(out, text[start:cut])
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}

func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func explodeLongParagraphs(text string, s types.ChunkSettings) []string {
	var out []string
	for _, p := range splitParagraphs(text) {
		if TokenEstimate(p) > s.ChunkSize {
			out = append(out, splitSentences(p)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// accumulate packs units into chunks up to ChunkSize tokens, carrying the
// trailing units worth up to Overlap tokens into the next chunk. Units
// that alone exceed MaxSize are cut with fixedSplit.
func accumulate(units []string, s types.ChunkSettings, sep string) []string {
	var out []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, strings.Join(cur, sep))
		// Overlap carry: keep trailing units within the overlap budget.
		var carry []string
		carryTokens := 0
		for i := len(cur) - 1; i >= 0; i-- {
			t := TokenEstimate(cur[i])
			if carryTokens+t > s.Overlap {
				break
			}
			carry = append([]string{cur[i]}, carry...)
			carryTokens += t
		}
		cur = carry
		curTokens = carryTokens
	}

	for _, u := range units {
		t := TokenEstimate(u)
		if t > s.MaxSize {
			flush()
			cur, curTokens = nil, 0
			out = append(out, fixedSplit(u, s)...)
			continue
		}
		if curTokens+t > s.ChunkSize && curTokens > 0 {
			flush()
		}
		cur = append(cur, u)
		curTokens += t
	}
	if len(cur) > 0 && curTokens > 0 {
		out = append(out, strings.Join(cur, sep))
	}
	return out
}

// recursiveSplit tries separators in order, splitting oversize spans by
// progressively finer boundaries.
func recursiveSplit(text string, s types.ChunkSettings, seps []string) []string {
	if TokenEstimate(text) <= s.ChunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	if len(seps) == 0 {
		return fixedSplit(text, s)
	}

	parts := strings.Split(text, seps[0])
	if len(parts) == 1 {
		return recursiveSplit(text, s, seps[1:])
	}

	var units []string
	for i, p := range parts {
		if i < len(parts)-1 {
			p += seps[0]
		}
		if TokenEstimate(p) > s.ChunkSize {
			units = append(units, recursiveSplit(p, s, seps[1:])...)
		} else {
			units = append(units, p)
		}
	}
	return accumulate(units, s, "")
}

// mergeUndersized folds chunks below minTokens into their predecessor
// within the same section.
func mergeUndersized(chunks []Chunk, minTokens int) []Chunk {
	if minTokens <= 0 {
		return chunks
	}
	var out []Chunk
	for _, c := range chunks {
		if c.TokenEst < minTokens && len(out) > 0 && out[len(out)-1].Section == c.Section {
			prev := &out[len(out)-1]
			prev.Text = prev.Text + "\n" + c.Text
			prev.TokenEst = TokenEstimate(prev.Text)
			continue
		}
		out = append(out, c)
	}
	return out
}

func computeStats(chunks []Chunk) Stats {
	var st Stats
	st.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return st
	}
	sum, midSentence := 0, 0
	for _, c := range chunks {
		sum += c.TokenEst
		if c.TokenEst < st.MinTokens || st.MinTokens == 0 {
			st.MinTokens = c.TokenEst
		}
		if c.TokenEst > st.MaxTokens {
			st.MaxTokens = c.TokenEst
		}
		if !endsSentence(c.Text) {
			midSentence++
		}
	}
	st.AvgTokens = sum / len(chunks)
	st.MidSentenceBoundaryRate = float64(midSentence) / float64(len(chunks))
	return st
}

func endsSentence(text string) bool {
	t := strings.TrimRight(strings.TrimSpace(text), `"')]`)
	if t == "" {
		return true
	}
	switch t[len(t)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}
