// Package chunker normalizes document text and splits it into
// retrieval-sized chunks using one of five boundary strategies. Sizes
// are expressed in tokens and estimated at four characters per token.
package chunker

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// charsPerToken is the character-to-token estimate used throughout.
const charsPerToken = 4

// TokenEstimate returns the approximate token count of s, never zero for
// non-empty input.
func TokenEstimate(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

var (
	hyphenBreak  = regexp.MustCompile(`(\pL)-\n(\pL)`)
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	trailingWS   = regexp.MustCompile(`[ \t]+\n`)
	newlineRun   = regexp.MustCompile(`\n{3,}`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0e-\x1f]`)
)

// Normalize canonicalizes whitespace. With enhanced set it additionally
// applies Unicode NFKC, repairs hyphenated line breaks from OCR or PDF
// extraction, and converts form feeds to paragraph breaks.
func Normalize(text string, enhanced bool) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	if enhanced {
		text = norm.NFKC.String(text)
		text = hyphenBreak.ReplaceAllString(text, "$1$2")
		text = strings.ReplaceAll(text, "\f", "\n\n")
	} else {
		text = strings.ReplaceAll(text, "\f", "\n")
	}

	text = controlChars.ReplaceAllString(text, "")
	text = spaceRun.ReplaceAllString(text, " ")
	text = trailingWS.ReplaceAllString(text, "\n")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// StripNoise removes lines matching any of the given patterns. Patterns
// are matched against the whole trimmed line.
func StripNoise(text string, patterns []*regexp.Regexp) (string, int) {
	if len(patterns) == 0 {
		return text, 0
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	removed := 0
	for _, line := range lines {
		noisy := false
		for _, re := range patterns {
			if re.MatchString(line) {
				noisy = true
				break
			}
		}
		if noisy {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), removed
}
