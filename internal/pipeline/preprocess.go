package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"aird/internal/catalog"
	"aird/internal/chunker"
	"aird/internal/logging"
	"aird/internal/playbook"
	"aird/internal/types"
)

// pageFence matches the page markers emitted by PDF extraction. They act
// as section boundaries so scanned pages chunk independently.
var pageFence = regexp.MustCompile(`^=== PAGE (\d+) ===$`)

// PreprocessStage turns raw text into processed JSONL chunk records.
type PreprocessStage struct{}

func (*PreprocessStage) Name() string { return StagePreprocess }

func (*PreprocessStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StagePreprocess, sc)
	ctx := context.Background()
	log := logging.L(logging.CategoryPreprocess)

	pb, err := sc.Runtime.Playbooks.Load(sc.PlaybookID)
	if err != nil {
		return fail(res, err)
	}

	settings := resolveChunkSettings(sc, pb)
	flags := sc.Product.Chunking.Flags

	noise, err := compileAll(pb.NoisePatterns)
	if err != nil {
		return fail(res, fmt.Errorf("%w: playbook %s noise patterns: %v", types.ErrConfig, pb.ID, err))
	}
	headings, err := compileAll(pb.Sectioning.HeadingPatterns)
	if err != nil {
		return fail(res, fmt.Errorf("%w: playbook %s heading patterns: %v", types.ErrConfig, pb.ID, err))
	}
	headings = append(headings, pageFence)

	files, err := sc.Runtime.Catalog.ListRawFiles(sc.Product.ID, sc.Scope.Version)
	if err != nil {
		return fail(res, err)
	}

	// With deduplication on, identical chunk text seen earlier in the
	// version is dropped; the first occurrence wins.
	var seen map[string]bool
	if sc.Runtime.Config.Pipeline.EnableDeduplication {
		seen = make(map[string]bool)
	}

	var (
		processed   []string
		fileErrors  = map[string]string{}
		totalChunks int
		duplicates  int
		boundarySum float64
		boundaryDen float64
	)

	for _, f := range files {
		if f.Status == catalog.RawDeleted {
			continue
		}
		_ = sc.Runtime.Catalog.SetRawFileStatusByStem(sc.Product.ID, sc.Scope.Version, f.FileStem, catalog.RawProcessing)

		records, stats, dupes, err := preprocessOne(ctx, sc, f.FileStem, f.Filename, settings, flags, noise, headings, seen)
		if err != nil {
			log.Warnw("file preprocessing failed", "stem", f.FileStem, "error", err)
			fileErrors[f.FileStem] = err.Error()
			_ = sc.Runtime.Catalog.SetRawFileStatusByStem(sc.Product.ID, sc.Scope.Version, f.FileStem, catalog.RawFailed)
			continue
		}
		duplicates += dupes
		if len(records) == 0 {
			log.Infow("file yielded no text, skipping", "stem", f.FileStem)
			continue
		}

		if err := sc.View.PutProcessedJSONL(ctx, f.FileStem, records); err != nil {
			fileErrors[f.FileStem] = err.Error()
			_ = sc.Runtime.Catalog.SetRawFileStatusByStem(sc.Product.ID, sc.Scope.Version, f.FileStem, catalog.RawFailed)
			continue
		}
		_ = sc.Runtime.Catalog.SetRawFileStatusByStem(sc.Product.ID, sc.Scope.Version, f.FileStem, catalog.RawProcessed)

		processed = append(processed, f.FileStem)
		totalChunks += stats.TotalChunks
		boundarySum += stats.MidSentenceBoundaryRate * float64(stats.TotalChunks)
		boundaryDen += float64(stats.TotalChunks)
	}

	boundaryRate := 0.0
	if boundaryDen > 0 {
		boundaryRate = boundarySum / boundaryDen
	}

	res.Metrics["processed_files"] = len(processed)
	res.Metrics["total_chunks"] = totalChunks
	res.Metrics["processed_file_list"] = processed
	res.Metrics["playbook_id"] = pb.ID
	res.Metrics["mid_sentence_boundary_rate"] = boundaryRate
	res.Metrics["chunk_strategy"] = settings.Strategy
	if seen != nil {
		res.Metrics["duplicate_chunks_removed"] = duplicates
	}
	if len(fileErrors) > 0 {
		res.Metrics["file_errors"] = fileErrors
	}

	if len(processed) == 0 {
		return skip(res, "no file produced any chunks")
	}

	stats := map[string]any{
		"processed_files":            len(processed),
		"total_chunks":               totalChunks,
		"mid_sentence_boundary_rate": boundaryRate,
		"playbook_id":                pb.ID,
	}
	if err := sc.Runtime.Catalog.SetPreprocessingStats(sc.Product.ID, stats); err != nil {
		return fail(res, err)
	}
	return succeed(res)
}

func preprocessOne(ctx context.Context, sc *StageContext, stem, filename string, settings types.ChunkSettings, flags types.PreprocessingFlags, noise, headings []*regexp.Regexp, seen map[string]bool) ([]types.ChunkRecord, chunker.Stats, int, error) {
	text, err := sc.View.GetRawText(ctx, stem)
	if err != nil {
		return nil, chunker.Stats{}, 0, err
	}
	if text == "" {
		return nil, chunker.Stats{}, 0, nil
	}

	text = chunker.Normalize(text, flags.EnhancedNormalization)
	text, removed := chunker.StripNoise(text, noise)
	if removed > 0 {
		logging.L(logging.CategoryPreprocess).Debugw("noise lines removed", "stem", stem, "lines", removed)
	}

	chunks, stats := chunker.Split(text, chunker.Options{
		Settings:        settings,
		HeadingPatterns: headings,
	})

	dupes := 0
	if seen != nil {
		kept := chunks[:0]
		for _, c := range chunks {
			sum := ChecksumMD5([]byte(c.Text))
			if seen[sum] {
				dupes++
				continue
			}
			seen[sum] = true
			kept = append(kept, c)
		}
		chunks = kept
		if dupes > 0 {
			logging.L(logging.CategoryPreprocess).Infow("duplicate chunks dropped",
				"stem", stem, "duplicates", dupes)
		}
	}

	records := make([]types.ChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		rec := types.ChunkRecord{
			ChunkID:    fmt.Sprintf("%s_%04d", stem, i),
			Text:       c.Text,
			Section:    c.Section,
			DocumentID: stem,
			TokenEst:   c.TokenEst,
			Source:     filename,
		}
		if m := pageFence.FindStringSubmatch(c.Section); m != nil {
			if page, err := strconv.Atoi(m[1]); err == nil {
				rec.Page = page
			}
		}
		records = append(records, rec)
	}
	return records, stats, dupes, nil
}

// resolveChunkSettings prefers a manually pinned product config, then the
// playbook's chunking block.
func resolveChunkSettings(sc *StageContext, pb *playbook.Playbook) types.ChunkSettings {
	if sc.Product.Chunking.Mode == types.ChunkingManual && sc.Product.Chunking.Settings.ChunkSize > 0 {
		return sc.Product.Chunking.Settings
	}
	return pb.ChunkSettings()
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
