package pipeline

import (
	"context"

	"aird/internal/catalog"
	"aird/internal/logging"
	"aird/internal/report"
	"aird/internal/types"
)

// ValidationStage renders the per-chunk validation CSV: every chunk with
// its trust score and a pass/fail mark against the configured threshold.
type ValidationStage struct{}

func (*ValidationStage) Name() string { return StageValidation }

func (*ValidationStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StageValidation, sc)
	ctx := context.Background()

	metrics, err := sc.View.GetMetricsJSON(ctx)
	if err != nil {
		return skip(res, "no metrics to validate")
	}
	if len(metrics) == 0 {
		return skip(res, "metrics list is empty")
	}

	threshold := sc.Runtime.Config.Pipeline.ScoreThreshold
	if threshold <= 0 {
		threshold = DefaultMinTrustScore
	}

	rows := report.BuildValidationRows(metrics, threshold)
	data, err := report.ValidationCSV(rows)
	if err != nil {
		return fail(res, err)
	}

	key, err := sc.View.PutArtifact(ctx, "validation.csv", data, "text/csv")
	if err != nil {
		return fail(res, err)
	}
	registerStageArtifact(sc, StageValidation, "csv", "validation.csv", sc.View.ExportsBucket, key, catalog.Retain90d)

	passed := 0
	for _, r := range rows {
		if r.Passed {
			passed++
		}
	}

	if err := sc.Runtime.Catalog.SetReportPaths(sc.Product.ID, key, ""); err != nil {
		return fail(res, err)
	}

	res.Artifacts = map[string]string{"validation.csv": key}
	res.Metrics["validated_chunks"] = len(rows)
	res.Metrics["passed_chunks"] = passed
	res.Metrics["failed_chunks"] = len(rows) - passed
	res.Metrics["score_threshold"] = threshold

	logging.L(logging.CategoryPipeline).Infow("validation report written",
		"chunks", len(rows), "passed", passed, "threshold", threshold)
	return succeed(res)
}
