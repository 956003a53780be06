package pipeline

import (
	"context"
	"time"

	"aird/internal/catalog"
	"aird/internal/logging"
	"aird/internal/report"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

// ReportingStage renders the PDF trust report from the product
// fingerprint, policy outcome, and chunk score distribution.
type ReportingStage struct{}

func (*ReportingStage) Name() string { return StageReporting }

func (*ReportingStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StageReporting, sc)
	ctx := context.Background()

	prod, err := sc.Runtime.Catalog.GetProduct(sc.Product.ID)
	if err != nil {
		return fail(res, err)
	}
	if prod.Fingerprint == nil {
		return skip(res, "no fingerprint to report on")
	}

	tr := &report.TrustReport{
		ProductName:  prod.Name,
		Version:      sc.Scope.Version,
		PlaybookID:   sc.PlaybookID,
		GeneratedAt:  time.Now().UTC(),
		Fingerprint:  *prod.Fingerprint,
		PolicyStatus: prod.PolicyStatus,
		Violations:   prod.PolicyViolations,
		Collection:   vectorstore.CollectionName(sc.Scope.Workspace, prod.Name, sc.Scope.Version),
	}

	if metrics, err := sc.View.GetMetricsJSON(ctx); err == nil {
		tr.Distribution = ChunkDistribution(metrics)
		tr.TotalChunks = len(metrics)
	}

	data, err := report.RenderPDF(tr)
	if err != nil {
		return fail(res, err)
	}

	key, err := sc.View.PutArtifact(ctx, "trust_report.pdf", data, "application/pdf")
	if err != nil {
		return fail(res, err)
	}
	registerStageArtifact(sc, StageReporting, "pdf", "trust_report.pdf", sc.View.ExportsBucket, key, catalog.Retain90d)

	if err := sc.Runtime.Catalog.SetReportPaths(sc.Product.ID, "", key); err != nil {
		return fail(res, err)
	}

	res.Artifacts = map[string]string{"trust_report.pdf": key}
	res.Metrics["report_bytes"] = len(data)
	res.Metrics["policy_status"] = prod.PolicyStatus

	logging.L(logging.CategoryPipeline).Infow("trust report written",
		"key", key, "bytes", len(data))
	return succeed(res)
}
