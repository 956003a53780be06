package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateRun inserts a queued pipeline run for (product, version).
func (c *Catalog) CreateRun(productID int64, version int, dagID string) (*PipelineRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec(`
		INSERT INTO pipeline_runs (product_id, version, status, dag_id)
		VALUES (?, ?, ?, ?)`,
		productID, version, string(RunQueued), dagID)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	id, _ := res.LastInsertId()
	return c.getRunLocked(id)
}

// StartRun transitions queued -> running and stamps started_at.
func (c *Catalog) StartRun(runID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`
		UPDATE pipeline_runs SET status = ?, started_at = ?
		WHERE id = ? AND status = ?`,
		string(RunRunning), time.Now().UTC(), runID, string(RunQueued))
	return err
}

// FinishRun transitions to a terminal status and stamps finished_at.
// Non-terminal statuses are rejected.
func (c *Catalog) FinishRun(runID int64, status RunStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run %d: %q is not terminal", runID, status)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`
		UPDATE pipeline_runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID)
	return err
}

// GetRun loads one run.
func (c *Catalog) GetRun(runID int64) (*PipelineRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getRunLocked(runID)
}

func (c *Catalog) getRunLocked(runID int64) (*PipelineRun, error) {
	row := c.db.QueryRow(`
		SELECT id, product_id, version, status, dag_id, metrics,
		       started_at, finished_at, embedding_model, embedding_dimension
		FROM pipeline_runs WHERE id = ?`, runID)

	var r PipelineRun
	var status, metricsJSON string
	var started, finished sql.NullTime
	var model sql.NullString
	var dim sql.NullInt64
	err := row.Scan(&r.ID, &r.ProductID, &r.Version, &status, &r.DagID,
		&metricsJSON, &started, &finished, &model, &dim)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	if model.Valid {
		r.EmbeddingModel = model.String
	}
	if dim.Valid {
		r.EmbeddingDimension = int(dim.Int64)
	}
	_ = json.Unmarshal([]byte(metricsJSON), &r.Metrics)
	return &r, nil
}

// UpdateRunMetrics replaces the run's metrics blob. The stage tracker is
// the single writer during a run.
func (c *Catalog) UpdateRunMetrics(runID int64, metrics map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal run metrics: %w", err)
	}
	_, err = c.db.Exec(`UPDATE pipeline_runs SET metrics = ? WHERE id = ?`, string(data), runID)
	return err
}

// SetRunEmbeddingModel records the model that produced this run's vectors.
func (c *Catalog) SetRunEmbeddingModel(runID int64, model string, dimension int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`
		UPDATE pipeline_runs SET embedding_model = ?, embedding_dimension = ? WHERE id = ?`,
		model, dimension, runID)
	return err
}

// LastRunForVersion returns the most recent run of (product, version), or
// nil when none exists.
func (c *Catalog) LastRunForVersion(productID int64, version int) (*PipelineRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var id int64
	err := c.db.QueryRow(`
		SELECT id FROM pipeline_runs
		WHERE product_id = ? AND version = ?
		ORDER BY id DESC LIMIT 1`, productID, version).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.getRunLocked(id)
}
