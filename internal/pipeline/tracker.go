package pipeline

import (
	"aird/internal/catalog"
	"aird/internal/logging"
	"aird/internal/types"
)

// Tracker persists stage results onto a pipeline run's metrics. It owns
// only the aird_stages and aird_stages_completed slots; run status stays
// with the runner.
type Tracker struct {
	cat   *catalog.Catalog
	runID int64
}

// NewTracker binds a tracker to a run row.
func NewTracker(cat *catalog.Catalog, runID int64) *Tracker {
	return &Tracker{cat: cat, runID: runID}
}

// Record merges one stage result into the run metrics: the full result
// under aird_stages[name], and the completion list updated by outcome
// (append on success, remove on failure, untouched on skip).
func (t *Tracker) Record(res types.StageResult) error {
	run, err := t.cat.GetRun(t.runID)
	if err != nil {
		return err
	}

	metrics := run.Metrics
	if metrics == nil {
		metrics = map[string]any{}
	}

	stages, _ := metrics["aird_stages"].(map[string]any)
	if stages == nil {
		stages = map[string]any{}
	}
	stages[res.StageName] = map[string]any{
		"status":      string(res.Status),
		"metrics":     res.Metrics,
		"error":       res.Error,
		"started_at":  res.StartedAt,
		"finished_at": res.FinishedAt,
		"artifacts":   res.Artifacts,
	}
	metrics["aird_stages"] = stages

	completed := toStringList(metrics["aird_stages_completed"])
	switch res.Status {
	case types.StageSucceeded:
		completed = appendUnique(completed, res.StageName)
	case types.StageFailed:
		completed = remove(completed, res.StageName)
	}
	metrics["aird_stages_completed"] = completed

	if err := t.cat.UpdateRunMetrics(t.runID, metrics); err != nil {
		return err
	}
	logging.L(logging.CategoryPipeline).Infow("stage recorded",
		"run", t.runID, "stage", res.StageName, "status", res.Status)
	return nil
}

// Completed returns the current completion list.
func (t *Tracker) Completed() ([]string, error) {
	run, err := t.cat.GetRun(t.runID)
	if err != nil {
		return nil, err
	}
	return toStringList(run.Metrics["aird_stages_completed"]), nil
}

// toStringList tolerates both []string and the []any produced by a JSON
// round trip through the run metrics column.
func toStringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, item := range list {
		if item == s {
			return list
		}
	}
	return append(list, s)
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}
