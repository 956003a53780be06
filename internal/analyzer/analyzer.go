// Package analyzer classifies sample text into a content type and
// proposes a chunking configuration. Classification combines a filename
// extension bias, per-type regex pattern densities, and an optional
// domain hint; the proposed config is then adjusted for sentence length
// and document size.
package analyzer

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"aird/internal/logging"
	"aird/internal/types"
)

// ContentType labels supported in classification.
const (
	TypeLegal         = "legal"
	TypeRegulatory    = "regulatory"
	TypeFinance       = "finance_banking"
	TypeCode          = "code"
	TypeDocumentation = "documentation"
	TypeConversation  = "conversation"
	TypeAcademic      = "academic"
	TypeTechnical     = "technical"
	TypeGeneral       = "general"
)

// PatternDetail records how one pattern scored for a type.
type PatternDetail struct {
	Pattern string  `json:"pattern"`
	Matches int     `json:"matches"`
	Score   float64 `json:"score"`
}

// Evidence explains a classification decision.
type Evidence struct {
	MatchedPatterns []string                   `json:"matched_patterns"` // unique matched terms of the winning type, capped at 30
	PatternDetails  map[string][]PatternDetail `json:"pattern_details"`
	AllScores       map[string]float64         `json:"all_scores"`
	HintUsed        bool                       `json:"hint_used"`
	Hint            string                     `json:"hint,omitempty"`
	HintAgreed      bool                       `json:"hint_agreed,omitempty"`
	ExtensionBias   string                     `json:"extension_bias,omitempty"`
}

// Result is a classification with its proposed chunking settings.
type Result struct {
	ContentType string              `json:"content_type"`
	Confidence  float64             `json:"confidence"`
	Settings    types.ChunkSettings `json:"settings"`
	Evidence    Evidence            `json:"evidence"`
}

// typePatterns are run case-insensitively in multi-line mode against the
// sample. Densities rather than raw counts keep long samples comparable
// to short ones.
var typePatterns = map[string][]*regexp.Regexp{
	TypeLegal: {
		regexp.MustCompile(`(?im)\b(whereas|hereinafter|notwithstanding)\b`),
		regexp.MustCompile(`(?im)\b(party|parties) (of the first part|agree[sd]?|hereto)\b`),
		regexp.MustCompile(`(?im)\b(indemnif\w+|liabilit\w+|warrant\w+)\b`),
		regexp.MustCompile(`(?im)\bgoverning law\b`),
		regexp.MustCompile(`(?im)\b(clause|sub-clause)\s+\d`),
	},
	TypeRegulatory: {
		regexp.MustCompile(`(?im)\b(regulation|directive|compliance|pursuant to)\b`),
		regexp.MustCompile(`(?im)\b(shall|shall not|must not)\b`),
		regexp.MustCompile(`(?im)(^|\s)(article|section)\s+\d+`),
		regexp.MustCompile(`(?im)§\s*\d+`),
	},
	TypeFinance: {
		regexp.MustCompile(`(?im)\b(interest rate|principal|collateral|maturity)\b`),
		regexp.MustCompile(`(?im)\b(balance sheet|cash flow|fiscal (year|quarter))\b`),
		regexp.MustCompile(`(?im)\b(basis points|bps|libor|sofr)\b`),
		regexp.MustCompile(`(?im)[$€£]\s?\d[\d,.]*`),
		regexp.MustCompile(`(?im)\b(asset|liability|equity|dividend)s?\b`),
	},
	TypeCode: {
		regexp.MustCompile(`(?im)^\s*(def|func|function|class|public|private|static)\s+\w+`),
		regexp.MustCompile(`(?im)^\s*(import|from|package|#include|using)\s+\S+`),
		regexp.MustCompile(`(?m)[{};]\s*$`),
		regexp.MustCompile(`(?m)^\s*(//|#|/\*)\s?\S`),
		regexp.MustCompile(`(?im)\breturn\b`),
	},
	TypeDocumentation: {
		regexp.MustCompile(`(?m)^#{1,6}\s+\S`),
		regexp.MustCompile(`(?m)^\s*[-*]\s+\S`),
		regexp.MustCompile("(?m)```"),
		regexp.MustCompile(`(?im)\b(see also|for example|note that|refer to)\b`),
	},
	TypeConversation: {
		regexp.MustCompile(`(?im)^\s*[\w .]{1,24}:\s+\S`),
		regexp.MustCompile(`(?im)\b(hi|hello|thanks|thank you|regards)\b`),
		regexp.MustCompile(`(?m)\?\s*$`),
		regexp.MustCompile(`(?im)^\s*(on .{4,40} wrote:|>+\s)`),
	},
	TypeAcademic: {
		regexp.MustCompile(`(?im)\b(abstract|introduction|methodology|conclusion|references)\b`),
		regexp.MustCompile(`(?im)\bet al\.?\b`),
		regexp.MustCompile(`(?im)\((19|20)\d{2}\)`),
		regexp.MustCompile(`(?im)\b(hypothesis|experiment|dataset|baseline)\b`),
	},
	TypeTechnical: {
		regexp.MustCompile(`(?im)\b(api|endpoint|server|deploy|configuration)\b`),
		regexp.MustCompile(`(?im)\b(http[s]?://|localhost:\d+)`),
		regexp.MustCompile(`(?im)\b(json|yaml|xml|sql)\b`),
		regexp.MustCompile(`(?im)\b(install|upgrade|version \d)\b`),
	},
}

// extensionBias seeds a type score from the filename extension.
func extensionBias(filename string) (string, float64) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".py", ".js", ".java", ".cpp", ".c", ".go", ".rs":
		return TypeCode, 0.8
	case ".md", ".rst", ".txt":
		return TypeDocumentation, 0.6
	case ".pdf", ".doc", ".docx":
		return TypeGeneral, 0.5
	}
	return "", 0
}

// baseSettings are per-type chunking defaults, in tokens:
// size / overlap / min / max / strategy.
var baseSettings = map[string]types.ChunkSettings{
	TypeLegal:         {ChunkSize: 1200, Overlap: 240, MinSize: 200, MaxSize: 2000, Strategy: "semantic"},
	TypeRegulatory:    {ChunkSize: 1400, Overlap: 280, MinSize: 200, MaxSize: 2200, Strategy: "semantic"},
	TypeFinance:       {ChunkSize: 1100, Overlap: 220, MinSize: 150, MaxSize: 2000, Strategy: "semantic"},
	TypeCode:          {ChunkSize: 900, Overlap: 180, MinSize: 100, MaxSize: 1500, Strategy: "recursive"},
	TypeDocumentation: {ChunkSize: 800, Overlap: 160, MinSize: 100, MaxSize: 1500, Strategy: "paragraph_boundary"},
	TypeConversation:  {ChunkSize: 700, Overlap: 140, MinSize: 50, MaxSize: 1200, Strategy: "sentence_boundary"},
	TypeAcademic:      {ChunkSize: 1000, Overlap: 200, MinSize: 150, MaxSize: 1800, Strategy: "paragraph_boundary"},
	TypeTechnical:     {ChunkSize: 900, Overlap: 180, MinSize: 100, MaxSize: 1600, Strategy: "recursive"},
	TypeGeneral:       {ChunkSize: 1000, Overlap: 200, MinSize: 100, MaxSize: 2000, Strategy: "fixed_size"},
}

// knownType reports whether a hint names a classifiable type.
func knownType(t string) bool {
	_, ok := baseSettings[t]
	return ok && t != TypeGeneral
}

// Analyze classifies sample text and proposes chunking settings. filename
// and hint are optional.
func Analyze(sample, filename, hint string) Result {
	log := logging.L(logging.CategoryAnalyzer)

	scores := make(map[string]float64, len(typePatterns)+1)
	details := make(map[string][]PatternDetail, len(typePatterns))
	matchedTerms := make(map[string][]string, len(typePatterns))

	// Density denominator: matches per thousand chars, floored so tiny
	// samples do not explode the ratio.
	kchars := float64(len(sample)) / 1000.0
	if kchars < 0.2 {
		kchars = 0.2
	}

	for ctype, patterns := range typePatterns {
		var sum float64
		seen := make(map[string]bool)
		for _, re := range patterns {
			matches := re.FindAllString(sample, -1)
			score := float64(len(matches)) / kchars
			if score > 1.0 {
				score = 1.0
			}
			sum += score
			details[ctype] = append(details[ctype], PatternDetail{
				Pattern: re.String(), Matches: len(matches), Score: score,
			})
			for _, m := range matches {
				term := strings.ToLower(strings.TrimSpace(m))
				if term != "" && !seen[term] {
					seen[term] = true
					matchedTerms[ctype] = append(matchedTerms[ctype], term)
				}
			}
		}
		scores[ctype] = sum / float64(len(patterns))
	}

	ev := Evidence{PatternDetails: details}

	if biasType, bias := extensionBias(filename); biasType != "" {
		ev.ExtensionBias = biasType
		if scores[biasType] < bias {
			scores[biasType] = bias
		}
	}

	best, bestScore := pickBest(scores)

	// Hint handling: weak or absent detection adopts the hint; agreement
	// boosts the winner.
	if hint != "" && knownType(hint) {
		ev.Hint = hint
		if hint == best {
			ev.HintUsed = true
			ev.HintAgreed = true
			bestScore += 0.2
			if bestScore > 1.0 {
				bestScore = 1.0
			}
			scores[best] = bestScore
		} else if bestScore < 0.5 {
			ev.HintUsed = true
			if scores[hint] < 0.6 {
				scores[hint] = 0.6
			}
			best, bestScore = hint, scores[hint]
		}
	}

	if bestScore <= 0 {
		best, bestScore = TypeGeneral, 0.3
	}

	ev.AllScores = scores
	ev.MatchedPatterns = capTerms(matchedTerms[best], 30)

	settings := adjustSettings(baseSettings[best], sample)
	log.Debugw("content analyzed", "type", best, "confidence", bestScore,
		"chunk_size", settings.ChunkSize, "strategy", settings.Strategy)

	return Result{
		ContentType: best,
		Confidence:  bestScore,
		Settings:    settings,
		Evidence:    ev,
	}
}

func pickBest(scores map[string]float64) (string, float64) {
	// Deterministic iteration for stable tie-breaks.
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestScore := "", 0.0
	for _, k := range keys {
		if scores[k] > bestScore {
			best, bestScore = k, scores[k]
		}
	}
	return best, bestScore
}

func capTerms(terms []string, n int) []string {
	if len(terms) > n {
		return terms[:n]
	}
	return terms
}

var sentenceSplit = regexp.MustCompile(`[.!?]+\s`)

// adjustSettings tunes the base settings for the observed sample: long
// sentences widen chunks, short ones narrow them, and extreme word counts
// clamp or scale the size.
func adjustSettings(base types.ChunkSettings, sample string) types.ChunkSettings {
	s := base

	words := len(strings.Fields(sample))
	sentences := sentenceSplit.Split(sample, -1)
	nonEmpty := 0
	for _, sent := range sentences {
		if strings.TrimSpace(sent) != "" {
			nonEmpty++
		}
	}
	avgSentence := 0.0
	if nonEmpty > 0 {
		avgSentence = float64(words) / float64(nonEmpty)
	}

	scale := func(f float64) {
		s.ChunkSize = int(float64(s.ChunkSize) * f)
		s.Overlap = int(float64(s.Overlap) * f)
	}
	if avgSentence > 30 {
		scale(1.2)
	} else if avgSentence > 0 && avgSentence < 15 {
		scale(0.8)
	}

	if words > 10000 {
		scale(1.1)
	}

	if s.ChunkSize < s.MinSize {
		s.ChunkSize = s.MinSize
	}
	if s.ChunkSize > s.MaxSize {
		s.ChunkSize = s.MaxSize
	}

	// Short documents never get chunks wider than the text itself; this
	// bound wins over the type minimum.
	if words > 0 && words < 100 {
		if cap := words * 4; s.ChunkSize > cap {
			s.ChunkSize = cap
		}
		if s.Overlap > s.ChunkSize/4 {
			s.Overlap = s.ChunkSize / 4
		}
	}

	if s.Overlap >= s.ChunkSize {
		s.Overlap = s.ChunkSize - 1
	}
	if s.Overlap < 0 {
		s.Overlap = 0
	}
	return s
}
