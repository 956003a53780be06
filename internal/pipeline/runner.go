package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"aird/internal/catalog"
	"aird/internal/config"
	"aird/internal/logging"
	"aird/internal/objectstore"
	"aird/internal/types"
)

// RunOptions select what a run executes.
type RunOptions struct {
	// Stages restricts the run to a subset, in the given order. Empty
	// means the full canonical Order.
	Stages []string

	// PlaybookID overrides the product's playbook for this run.
	PlaybookID string

	// DagID tags the run with the orchestrator's identifier.
	DagID string
}

// Runner executes pipeline runs against a runtime.
type Runner struct {
	rt *Runtime
}

// NewRunner binds a runner to its runtime.
func NewRunner(rt *Runtime) *Runner {
	return &Runner{rt: rt}
}

// Run executes the selected stages for (product, version) as one pipeline
// run. Stage results land on the run metrics via the tracker; the run
// status is derived at the end:
//
//	any stage failed                -> failed
//	policy outcome failed           -> failed_policy
//	policy outcome warnings         -> ready_with_warnings
//	otherwise                       -> succeeded
//
// A failed run never clears a previously recorded readiness fingerprint.
func (r *Runner) Run(ctx context.Context, productID int64, version int, opts RunOptions) (*catalog.PipelineRun, error) {
	log := logging.L(logging.CategoryPipeline)

	prod, err := r.rt.Catalog.GetProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInputMissing, err)
	}
	if version <= 0 {
		version = prod.CurrentVersion
	}

	dagID := opts.DagID
	if dagID == "" {
		dagID = uuid.NewString()
	}
	run, err := r.rt.Catalog.CreateRun(productID, version, dagID)
	if err != nil {
		return nil, err
	}
	if err := r.rt.Catalog.StartRun(run.ID); err != nil {
		return nil, err
	}
	run.Status = catalog.RunRunning

	sc := r.stageContext(run, prod, opts.PlaybookID)
	tracker := NewTracker(r.rt.Catalog, run.ID)

	names := opts.Stages
	if len(names) == 0 {
		names = enabledStages(r.rt.Config.Pipeline)
	}

	stageFailed := false
	for _, name := range names {
		if ctx.Err() != nil {
			r.finish(run, catalog.RunFailed)
			return run, ctx.Err()
		}

		stage, err := NewStage(name)
		if err != nil {
			r.finish(run, catalog.RunFailed)
			return run, err
		}

		log.Infow("stage starting", "run", run.ID, "stage", name,
			"product", prod.Name, "version", version)
		res := stage.Execute(sc)
		if err := tracker.Record(res); err != nil {
			log.Errorw("stage result not recorded", "run", run.ID, "stage", name, "error", err)
		}

		if res.Status == types.StageFailed {
			log.Errorw("stage failed", "run", run.ID, "stage", name, "error", res.Error)
			stageFailed = true
			break
		}
	}

	status := r.finalStatus(stageFailed, prod.ID)
	r.finish(run, status)
	log.Infow("run finished", "run", run.ID, "status", status)
	return run, nil
}

// enabledStages is the canonical Order minus the stages switched off in
// the pipeline config. An explicit stage list bypasses this: naming a
// stage runs it.
func enabledStages(cfg config.PipelineConfig) []string {
	out := make([]string, 0, len(Order))
	for _, name := range Order {
		if name == StageValidation && !cfg.EnableValidation {
			continue
		}
		if name == StageReporting && !cfg.EnablePDFReports {
			continue
		}
		out = append(out, name)
	}
	return out
}

// RunStage executes a single named stage inside a fresh run, for manual
// reruns of one step.
func (r *Runner) RunStage(ctx context.Context, productID int64, version int, stageName, playbookID string) (*catalog.PipelineRun, error) {
	return r.Run(ctx, productID, version, RunOptions{
		Stages:     []string{stageName},
		PlaybookID: playbookID,
		DagID:      "manual_" + stageName,
	})
}

func (r *Runner) stageContext(run *catalog.PipelineRun, prod *catalog.Product, playbookOverride string) *StageContext {
	playbookID := playbookOverride
	if playbookID == "" {
		playbookID = prod.PlaybookID
	}
	if playbookID == "" {
		playbookID = r.rt.Config.Pipeline.DefaultPlaybook
	}

	scope := objectstore.Scope{
		Workspace: prod.WorkspaceID,
		Product:   prod.ID,
		Version:   run.Version,
	}
	return &StageContext{
		Runtime: r.rt,
		Run:     run,
		Product: prod,
		Scope:   scope,
		View: &View{
			Store:         r.rt.Objects,
			RawBucket:     r.rt.Config.Storage.RawBucket,
			Bucket:        r.rt.Config.Storage.CleanBucket,
			ExportsBucket: r.rt.Config.Storage.ExportsBucket,
			Scope:         scope,
			Extract:       r.rt.Extract,
		},
		PlaybookID: playbookID,
	}
}

// finalStatus maps the stage and policy outcomes to a run status. The
// policy outcome is read back from the product row so single-stage runs
// of later stages still see the recorded verdict.
func (r *Runner) finalStatus(stageFailed bool, productID int64) catalog.RunStatus {
	if stageFailed {
		return catalog.RunFailed
	}
	prod, err := r.rt.Catalog.GetProduct(productID)
	if err != nil {
		return catalog.RunFailed
	}
	switch types.PolicyStatus(prod.PolicyStatus) {
	case types.PolicyFailed:
		return catalog.RunFailedPolicy
	case types.PolicyWarnings:
		return catalog.RunReadyWithWarnings
	}
	return catalog.RunSucceeded
}

func (r *Runner) finish(run *catalog.PipelineRun, status catalog.RunStatus) {
	if err := r.rt.Catalog.FinishRun(run.ID, status); err != nil {
		logging.L(logging.CategoryPipeline).Errorw("run status not recorded",
			"run", run.ID, "status", status, "error", err)
	}
	run.Status = status
}
