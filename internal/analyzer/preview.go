package analyzer

import "strings"

// charsPerToken is the rough character-to-token ratio used for previews.
const charsPerToken = 4

// Preview summarizes how a text would chunk under the given settings.
type Preview struct {
	TotalChunks      int      `json:"total_chunks"`
	AvgTokens        int      `json:"avg_tokens"`
	MinTokens        int      `json:"min_tokens"`
	MaxTokens        int      `json:"max_tokens"`
	SampleChunks     []string `json:"sample_chunks"`
	RetrievalQuality string   `json:"retrieval_quality"`
}

// PreviewChunking splits text into fixed-size windows of chunkTokens with
// overlapTokens of lookback and reports chunk statistics plus the first
// five chunks. Sizes are estimated at four characters per token.
func PreviewChunking(text string, chunkTokens, overlapTokens int) Preview {
	if chunkTokens <= 0 {
		chunkTokens = 1000
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= chunkTokens {
		overlapTokens = chunkTokens - 1
	}

	chunkChars := chunkTokens * charsPerToken
	stepChars := (chunkTokens - overlapTokens) * charsPerToken

	var p Preview
	var sumTokens int
	for start := 0; start < len(text); start += stepChars {
		end := start + chunkChars
		if end > len(text) {
			end = len(text)
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk == "" {
			if end == len(text) {
				break
			}
			continue
		}
		tokens := len(chunk) / charsPerToken
		if tokens == 0 {
			tokens = 1
		}
		p.TotalChunks++
		sumTokens += tokens
		if p.MinTokens == 0 || tokens < p.MinTokens {
			p.MinTokens = tokens
		}
		if tokens > p.MaxTokens {
			p.MaxTokens = tokens
		}
		if len(p.SampleChunks) < 5 {
			p.SampleChunks = append(p.SampleChunks, chunk)
		}
		if end == len(text) {
			break
		}
	}
	if p.TotalChunks > 0 {
		p.AvgTokens = sumTokens / p.TotalChunks
	}
	p.RetrievalQuality = retrievalQuality(p.AvgTokens)
	return p
}

// retrievalQuality labels average chunk size for retrieval use. Mid-range
// chunks embed and retrieve best; very small or very large ones degrade
// recall or precision.
func retrievalQuality(avgTokens int) string {
	switch {
	case avgTokens >= 200 && avgTokens <= 1200:
		return "high"
	case avgTokens >= 80 && avgTokens < 200, avgTokens > 1200 && avgTokens <= 1800:
		return "medium"
	default:
		return "low"
	}
}
