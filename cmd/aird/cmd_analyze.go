package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"aird/internal/analyzer"
	"aird/internal/playbook"
)

// sampleLimit caps how much of a file feeds the analyzer. Classification
// converges well before this.
const sampleLimit = 64 * 1024

var analyzeHint string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Classify a document and propose chunking settings",
	Long: `Runs the content analyzer over a local file and prints the detected
content type, confidence, and the chunking settings it would use. An
optional --hint biases a weak classification toward a known type.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		sample := string(data)
		if len(sample) > sampleLimit {
			sample = sample[:sampleLimit]
		}

		res := analyzer.Analyze(sample, filepath.Base(args[0]), analyzeHint)

		fmt.Printf("Content type: %s (confidence %.2f)\n", res.ContentType, res.Confidence)
		fmt.Printf("Playbook route: %s\n", playbook.Route(sample, filepath.Base(args[0])))
		fmt.Printf("Chunking: size=%d overlap=%d strategy=%s (min=%d max=%d)\n",
			res.Settings.ChunkSize, res.Settings.Overlap, res.Settings.Strategy,
			res.Settings.MinSize, res.Settings.MaxSize)
		if res.Evidence.HintUsed {
			fmt.Printf("Hint %q applied (agreed: %v)\n", res.Evidence.Hint, res.Evidence.HintAgreed)
		}
		if len(res.Evidence.MatchedPatterns) > 0 {
			fmt.Printf("Evidence: %v\n", res.Evidence.MatchedPatterns)
		}
		return nil
	},
}

var (
	previewTokens  int
	previewOverlap int
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Estimate how a document would chunk",
	Long: `Splits a local file into fixed windows at the given token size and
prints chunk statistics plus the first chunks, for pre-ingest cost and
quality estimation. With size 0 the analyzer picks the settings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		text := string(data)

		tokens, overlap := previewTokens, previewOverlap
		if tokens <= 0 {
			res := analyzer.Analyze(text, filepath.Base(args[0]), "")
			tokens, overlap = res.Settings.ChunkSize, res.Settings.Overlap
			fmt.Printf("Analyzer picked %s settings: size=%d overlap=%d\n",
				res.ContentType, tokens, overlap)
		}

		p := analyzer.PreviewChunking(text, tokens, overlap)
		fmt.Printf("Chunks: %d (tokens avg=%d min=%d max=%d)\n",
			p.TotalChunks, p.AvgTokens, p.MinTokens, p.MaxTokens)
		fmt.Printf("Retrieval quality: %s\n", p.RetrievalQuality)
		for i, s := range p.SampleChunks {
			if len(s) > 120 {
				s = s[:120] + "..."
			}
			fmt.Printf("  chunk %d: %s\n", i+1, s)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeHint, "hint", "", "content type hint (legal, code, documentation, ...)")
	previewCmd.Flags().IntVar(&previewTokens, "tokens", 0, "chunk size in tokens (0 = let the analyzer pick)")
	previewCmd.Flags().IntVar(&previewOverlap, "overlap", 0, "overlap in tokens")
}
