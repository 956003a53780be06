package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"aird/internal/catalog"
	"aird/internal/logging"
	"aird/internal/types"
)

// =============================================================================
// SCORE WEIGHTS
// =============================================================================

// ScoreWeights combine the per-dimension chunk scores into AI_Trust_Score.
type ScoreWeights struct {
	Completeness     float64 `json:"completeness"`
	Quality          float64 `json:"quality"`
	Secure           float64 `json:"secure"`
	MetadataPresence float64 `json:"metadata_presence"`
	KBReady          float64 `json:"kb_ready"`
}

// DefaultWeights is used when no weights file is configured.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{
		Completeness:     0.25,
		Quality:          0.25,
		Secure:           0.20,
		MetadataPresence: 0.15,
		KBReady:          0.15,
	}
}

// LoadWeights reads a weights file, falling back to defaults when the
// path is empty or missing. Weights are normalized to sum to 1.
func LoadWeights(path string) (ScoreWeights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logging.L(logging.CategoryScoring).Warnw("scoring weights file missing, using defaults", "path", path)
		return w, nil
	}
	if err != nil {
		return w, err
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return w, fmt.Errorf("%w: scoring weights %s: %v", types.ErrConfig, path, err)
	}
	sum := w.Completeness + w.Quality + w.Secure + w.MetadataPresence + w.KBReady
	if sum <= 0 {
		return DefaultWeights(), nil
	}
	w.Completeness /= sum
	w.Quality /= sum
	w.Secure /= sum
	w.MetadataPresence /= sum
	w.KBReady /= sum
	return w, nil
}

// =============================================================================
// PER-CHUNK SCORING
// =============================================================================

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                                // US SSN
	regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),                               // card-like digit runs
	regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`),      // email
	regexp.MustCompile(`\b\+?\d{1,3}[ .\-]?\(?\d{2,4}\)?[ .\-]?\d{3}[ .\-]?\d{3,4}\b`), // phone
}

var redactionMarker = regexp.MustCompile(`(?i)\[redacted\]|\bxxx-xx-\d{4}\b|█+`)

// scoreChunk computes the five quality dimensions for one chunk record.
func scoreChunk(rec types.ChunkRecord, target int, tolerance float64, weights ScoreWeights) types.ChunkMetrics {
	m := types.ChunkMetrics{
		File:     rec.Source,
		ChunkID:  rec.ChunkID,
		Section:  rec.Section,
		TokenEst: rec.TokenEst,
	}

	m.Quality = qualityScore(rec.Text)
	m.Completeness = completenessScore(rec)
	m.Secure = secureScore(rec.Text)
	m.MetadataPresence = metadataScore(rec)
	m.KBReady = kbReadyScore(rec, target, tolerance)

	m.AITrustScore = clamp100(weights.Completeness*m.Completeness +
		weights.Quality*m.Quality +
		weights.Secure*m.Secure +
		weights.MetadataPresence*m.MetadataPresence +
		weights.KBReady*m.KBReady)
	return m
}

// qualityScore rates textual quality: alphabetic density, lexical
// variety, and a sane length.
func qualityScore(text string) float64 {
	if text == "" {
		return 0
	}
	alpha := 0
	for _, r := range text {
		if r == ' ' || r == '\n' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alpha++
		}
	}
	alphaRatio := float64(alpha) / float64(len([]rune(text)))

	words := strings.Fields(strings.ToLower(text))
	uniqueness := 1.0
	if len(words) > 0 {
		seen := make(map[string]bool, len(words))
		for _, w := range words {
			seen[w] = true
		}
		uniqueness = float64(len(seen)) / float64(len(words))
	}

	lengthOK := 0.0
	if n := len(text); n >= 80 && n <= 50_000 {
		lengthOK = 1.0
	} else if n > 0 {
		lengthOK = 0.5
	}

	return clamp100(100 * (0.4*alphaRatio + 0.3*uniqueness + 0.3*lengthOK))
}

// completenessScore rates whether a chunk looks whole: enough tokens and
// a sentence-shaped ending.
func completenessScore(rec types.ChunkRecord) float64 {
	score := 100.0
	if rec.TokenEst < 10 {
		score -= 50
	} else if rec.TokenEst < 30 {
		score -= 20
	}
	t := strings.TrimRight(strings.TrimSpace(rec.Text), `"')]`)
	if t == "" {
		return 0
	}
	switch t[len(t)-1] {
	case '.', '!', '?', ':':
	default:
		score -= 20
	}
	return clamp100(score)
}

// secureScore penalizes PII density; visible redaction markers restore
// half the penalty since they show sanitization was applied.
func secureScore(text string) float64 {
	matches := 0
	for _, re := range piiPatterns {
		matches += len(re.FindAllString(text, -1))
	}
	if matches == 0 {
		return 100
	}
	penalty := float64(matches) * 20
	if penalty > 100 {
		penalty = 100
	}
	if redactionMarker.MatchString(text) {
		penalty /= 2
	}
	return clamp100(100 - penalty)
}

// metadataScore counts the present metadata fields out of five.
func metadataScore(rec types.ChunkRecord) float64 {
	present := 0
	if rec.Source != "" {
		present++
	}
	if rec.Section != "" {
		present++
	}
	if rec.DocumentID != "" {
		present++
	}
	if rec.FieldName != "" {
		present++
	}
	if rec.Page > 0 {
		present++
	}
	return float64(present) / 5 * 100
}

// kbReadyScore rates retrieval readiness: a real section assignment and a
// token count near the playbook target.
func kbReadyScore(rec types.ChunkRecord, target int, tolerance float64) float64 {
	hasSection := 0.0
	if rec.Section != "" && rec.Section != "body" && rec.Section != "general" {
		hasSection = 1.0
	}
	inTarget := 0.0
	if target > 0 {
		lo := float64(target) * (1 - tolerance)
		hi := float64(target) * (1 + tolerance)
		if t := float64(rec.TokenEst); t >= lo && t <= hi {
			inTarget = 1.0
		} else if t >= lo/2 && t <= hi*2 {
			inTarget = 0.5
		}
	}
	return clamp100(100 * (0.5*hasSection + 0.5*inTarget))
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// =============================================================================
// SCORING STAGE
// =============================================================================

// ScoringStage computes per-chunk quality metrics and writes metrics.json.
type ScoringStage struct{}

func (*ScoringStage) Name() string { return StageScoring }

func (*ScoringStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StageScoring, sc)
	ctx := context.Background()

	weights, err := LoadWeights(sc.Runtime.Config.Pipeline.ScoringWeightsPath)
	if err != nil {
		return fail(res, err)
	}

	pb, err := sc.Runtime.Playbooks.Load(sc.PlaybookID)
	if err != nil {
		return fail(res, err)
	}
	target := pb.Chunking.MaxTokens
	tolerance := pb.Coherence.TargetTolerance
	if tolerance <= 0 {
		tolerance = 0.5
	}

	stems, err := sc.View.ListProcessedStems(ctx)
	if err != nil {
		return fail(res, err)
	}
	if len(stems) == 0 {
		return skip(res, "no processed files to score")
	}

	var all []types.ChunkMetrics
	var trustSum float64
	for _, stem := range stems {
		records, err := sc.View.GetProcessedJSONL(ctx, stem)
		if err != nil {
			return fail(res, err)
		}
		for _, rec := range records {
			m := scoreChunk(rec, target, tolerance, weights)
			trustSum += m.AITrustScore
			all = append(all, m)
		}
	}
	if len(all) == 0 {
		return skip(res, "processed files contain no chunks")
	}

	if err := sc.View.PutMetricsJSON(ctx, all); err != nil {
		return fail(res, err)
	}
	registerStageArtifact(sc, StageScoring, "json", "metrics.json", sc.View.Bucket, sc.Scope.MetricsKey(), catalog.Retain90d)

	res.Metrics["scored_chunks"] = len(all)
	res.Metrics["avg_trust_score"] = trustSum / float64(len(all))
	res.Artifacts = map[string]string{"metrics.json": sc.Scope.MetricsKey()}

	logging.L(logging.CategoryScoring).Infow("chunks scored",
		"chunks", len(all), "avg_trust", trustSum/float64(len(all)))
	return succeed(res)
}

// registerStageArtifact records an object in the artifact registry.
// Registration failures are logged, not fatal; the object itself exists.
func registerStageArtifact(sc *StageContext, stage, atype, name, bucket, key string, retention catalog.Retention) {
	_, err := sc.Runtime.Catalog.RegisterArtifact(&catalog.Artifact{
		RunID:        sc.Run.ID,
		WorkspaceID:  sc.Scope.Workspace,
		ProductID:    sc.Product.ID,
		Version:      sc.Scope.Version,
		StageName:    stage,
		ArtifactType: atype,
		ArtifactName: name,
		Bucket:       bucket,
		ObjectKey:    key,
		Retention:    retention,
	})
	if err != nil {
		logging.L(logging.CategoryPipeline).Warnw("artifact registration failed",
			"stage", stage, "name", name, "error", err)
	}
}
