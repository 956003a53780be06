package pipeline

import (
	"context"
	"fmt"

	"aird/internal/logging"
	"aird/internal/playbook"
	"aird/internal/types"
)

// Suggestion is the optimizer's structured advice for the next run.
type Suggestion struct {
	NextPlaybook            string         `json:"next_playbook"`
	ConfigTweaks            map[string]any `json:"config_tweaks"`
	Suggestions             []string       `json:"suggestions"`
	PlaybookRecommendations []string       `json:"playbook_recommendations"`
}

// Optimize derives rule-based advice from a fingerprint and its policy
// outcome. The next playbook may equal the current one.
func Optimize(fp types.Fingerprint, outcome types.PolicyResult, currentPlaybook string) Suggestion {
	s := Suggestion{
		NextPlaybook: currentPlaybook,
		ConfigTweaks: map[string]any{},
	}

	violated := map[string]bool{}
	for _, v := range outcome.Violations {
		violated[tagOf(v)] = true
	}

	if violated["security_not_full"] {
		s.ConfigTweaks["redaction_strict"] = true
		s.Suggestions = append(s.Suggestions,
			fmt.Sprintf("security score %.0f is below the promotion bar; enable strict redaction and re-run preprocessing", fp.Secure))
	}
	if violated["weak_metadata"] {
		s.ConfigTweaks["force_metadata_extraction"] = true
		s.Suggestions = append(s.Suggestions,
			"metadata presence is weak; force metadata extraction so sections and document ids are populated")
	}
	if violated["kb_not_ready"] || fp.ChunkBoundaryQuality > 0 && fp.ChunkBoundaryQuality < 60 {
		s.ConfigTweaks["increase_chunk_overlap"] = true
		s.Suggestions = append(s.Suggestions,
			"chunk boundaries cut sentences too often; increase overlap or move to a boundary-aware strategy")
		if currentPlaybook == playbook.IDTech {
			s.PlaybookRecommendations = append(s.PlaybookRecommendations, playbook.IDRegulatory)
		}
	}
	if violated["low_trust"] && fp.Completeness < 60 {
		s.ConfigTweaks["increase_chunk_overlap"] = true
		s.Suggestions = append(s.Suggestions,
			"low completeness is dragging trust down; larger chunks with more overlap usually help")
	}

	if len(s.PlaybookRecommendations) > 0 {
		s.NextPlaybook = s.PlaybookRecommendations[0]
	}
	if len(s.Suggestions) == 0 {
		s.Suggestions = []string{"no changes recommended; current configuration meets policy"}
	}
	return s
}

// OptimizerStage stores the suggestion alongside the run artifacts.
type OptimizerStage struct{}

func (*OptimizerStage) Name() string { return StageOptimizer }

func (*OptimizerStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StageOptimizer, sc)
	ctx := context.Background()

	prod, err := sc.Runtime.Catalog.GetProduct(sc.Product.ID)
	if err != nil {
		return fail(res, err)
	}
	if prod.Fingerprint == nil {
		return skip(res, "no fingerprint to optimize against")
	}

	outcome := types.PolicyResult{Status: types.PolicyStatus(prod.PolicyStatus), Violations: prod.PolicyViolations}
	suggestion := Optimize(*prod.Fingerprint, outcome, sc.PlaybookID)

	key, err := sc.View.PutArtifact(ctx, "optimizer_suggestion.json", mustJSON(suggestion), "application/json")
	if err != nil {
		return fail(res, err)
	}
	res.Artifacts = map[string]string{"optimizer_suggestion.json": key}
	res.Metrics["next_playbook"] = suggestion.NextPlaybook
	res.Metrics["config_tweaks"] = suggestion.ConfigTweaks

	logging.L(logging.CategoryPipeline).Infow("optimizer suggestions ready",
		"next_playbook", suggestion.NextPlaybook, "tweaks", len(suggestion.ConfigTweaks))
	return succeed(res)
}
