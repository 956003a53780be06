// Package pipeline runs the staged ingestion flow for one (product,
// version): preprocess, scoring, fingerprint, policy, optimizer,
// indexing, validation, reporting. Stages exchange data only through the
// object store and report results to the stage tracker; the runner owns
// run status.
package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"aird/internal/catalog"
	"aird/internal/config"
	"aird/internal/embedding"
	"aird/internal/extract"
	"aird/internal/objectstore"
	"aird/internal/playbook"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

// Runtime bundles the injected dependencies every stage may need.
type Runtime struct {
	Catalog   *catalog.Catalog
	Objects   objectstore.ObjectStore
	Vectors   vectorstore.Store
	Playbooks *playbook.Loader
	Extract   *extract.Registry
	Config    *config.Config

	// NewEngine builds the embedding engine for a spec. Tests swap this
	// for a deterministic local engine.
	NewEngine func(spec types.EmbeddingSpec) (embedding.Engine, error)
}

// Engine resolves the embedding engine for a spec through the runtime's
// factory, defaulting to the registry-driven production factory.
func (r *Runtime) Engine(spec types.EmbeddingSpec) (embedding.Engine, error) {
	if r.NewEngine != nil {
		return r.NewEngine(spec)
	}
	return embedding.NewEngine(embedding.EngineConfig{
		ModelID:           spec.Model,
		APIKey:            r.Config.Embedding.APIKey,
		OllamaEndpoint:    r.Config.Embedding.OllamaEndpoint,
		DimensionOverride: spec.Dimension,
	})
}

// StageContext carries the per-run coordinates into a stage execution.
type StageContext struct {
	Runtime *Runtime
	Run     *catalog.PipelineRun
	Product *catalog.Product
	Scope   objectstore.Scope
	View    *View

	// PlaybookID is the effective playbook for this run, already
	// resolved against context, product, and config defaults.
	PlaybookID string
}

// Stage is one unit of pipeline work. Execute returns a StageResult and
// never panics for expected failures; unexpected errors surface through
// the result's Error field with status failed.
type Stage interface {
	Name() string
	Execute(ctx *StageContext) types.StageResult
}

// stageConstructors maps stage names to constructors, in no particular
// order; Order lists the canonical execution sequence.
var stageConstructors = map[string]func() Stage{
	StagePreprocess:  func() Stage { return &PreprocessStage{} },
	StageScoring:     func() Stage { return &ScoringStage{} },
	StageFingerprint: func() Stage { return &FingerprintStage{} },
	StagePolicy:      func() Stage { return &PolicyStage{} },
	StageOptimizer:   func() Stage { return &OptimizerStage{} },
	StageIndexing:    func() Stage { return &IndexingStage{} },
	StageValidation:  func() Stage { return &ValidationStage{} },
	StageReporting:   func() Stage { return &ReportingStage{} },
}

// Canonical stage names.
const (
	StagePreprocess  = "preprocess"
	StageScoring     = "scoring"
	StageFingerprint = "fingerprint"
	StagePolicy      = "policy"
	StageOptimizer   = "optimizer"
	StageIndexing    = "indexing"
	StageValidation  = "validation"
	StageReporting   = "reporting"
)

// Order is the canonical execution sequence of a full run.
var Order = []string{
	StagePreprocess,
	StageScoring,
	StageFingerprint,
	StagePolicy,
	StageOptimizer,
	StageIndexing,
	StageValidation,
	StageReporting,
}

// NewStage constructs a stage by name.
func NewStage(name string) (Stage, error) {
	ctor, ok := stageConstructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown stage %q (known: %v)", types.ErrConfig, name, KnownStages())
	}
	return ctor(), nil
}

// KnownStages lists registered stage names, sorted.
func KnownStages() []string {
	out := make([]string, 0, len(stageConstructors))
	for name := range stageConstructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// begin stamps the common fields of a stage result.
func begin(name string, sc *StageContext) types.StageResult {
	return types.StageResult{
		StageName: name,
		ProductID: sc.Product.ID,
		Version:   sc.Scope.Version,
		StartedAt: time.Now().UTC(),
		Metrics:   map[string]any{},
	}
}

func succeed(res types.StageResult) types.StageResult {
	res.Status = types.StageSucceeded
	res.FinishedAt = time.Now().UTC()
	return res
}

func fail(res types.StageResult, err error) types.StageResult {
	res.Status = types.StageFailed
	res.Error = err.Error()
	res.FinishedAt = time.Now().UTC()
	return res
}

func skip(res types.StageResult, reason string) types.StageResult {
	res.Status = types.StageSkipped
	res.Metrics["skip_reason"] = reason
	res.FinishedAt = time.Now().UTC()
	return res
}

// mustJSON marshals pipeline-owned structs; they have no unmarshalable
// fields, so an error here is a programming bug.
func mustJSON(v any) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}
