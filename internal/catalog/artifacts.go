package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aird/internal/logging"
)

// RegisterArtifact catalogs one stage output. The caller has already
// written the object; the registry row points at it. For metrics.json
// exactly one row per (product, version) stays active: any prior metrics
// artifact of the scope is archived first.
func (c *Catalog) RegisterArtifact(a *Artifact) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a.Status == "" {
		a.Status = ArtifactActive
	}
	if a.Retention == "" {
		a.Retention = Retain90d
	}

	if a.ArtifactName == "metrics.json" {
		if _, err := c.db.Exec(`
			UPDATE pipeline_artifacts SET status = ?
			WHERE product_id = ? AND version = ? AND artifact_name = 'metrics.json' AND status = ?`,
			string(ArtifactArchived), a.ProductID, a.Version, string(ArtifactActive)); err != nil {
			return 0, fmt.Errorf("archive prior metrics artifact: %w", err)
		}
	}

	inputs, _ := json.Marshal(a.InputArtifacts)
	meta, _ := json.Marshal(a.Metadata)
	res, err := c.db.Exec(`
		INSERT INTO pipeline_artifacts (run_id, workspace_id, product_id, version,
		    stage_name, artifact_type, artifact_name, bucket, object_key, size,
		    checksum, input_artifacts, artifact_metadata, status, retention)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.WorkspaceID, a.ProductID, a.Version, a.StageName,
		a.ArtifactType, a.ArtifactName, a.Bucket, a.ObjectKey, a.Size,
		a.Checksum, string(inputs), string(meta), string(a.Status), string(a.Retention))
	if err != nil {
		return 0, fmt.Errorf("register artifact %s/%s: %w", a.StageName, a.ArtifactName, err)
	}
	id, _ := res.LastInsertId()
	a.ID = id
	return id, nil
}

// GetArtifact loads one artifact row.
func (c *Catalog) GetArtifact(id int64) (*Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getArtifactLocked(id)
}

func (c *Catalog) getArtifactLocked(id int64) (*Artifact, error) {
	row := c.db.QueryRow(`
		SELECT id, run_id, workspace_id, product_id, version, stage_name,
		       artifact_type, artifact_name, bucket, object_key, size, checksum,
		       input_artifacts, artifact_metadata, status, retention, deleted_at, created_at
		FROM pipeline_artifacts WHERE id = ?`, id)

	var a Artifact
	var status, retention, inputs, meta string
	var deleted sql.NullTime
	err := row.Scan(&a.ID, &a.RunID, &a.WorkspaceID, &a.ProductID, &a.Version,
		&a.StageName, &a.ArtifactType, &a.ArtifactName, &a.Bucket, &a.ObjectKey,
		&a.Size, &a.Checksum, &inputs, &meta, &status, &retention, &deleted, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	a.Status = ArtifactStatus(status)
	a.Retention = Retention(retention)
	if deleted.Valid {
		a.DeletedAt = &deleted.Time
	}
	_ = json.Unmarshal([]byte(inputs), &a.InputArtifacts)
	_ = json.Unmarshal([]byte(meta), &a.Metadata)
	return &a, nil
}

// ListArtifacts returns artifacts of one (product, version), newest first.
func (c *Catalog) ListArtifacts(productID int64, version int) ([]Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`
		SELECT id FROM pipeline_artifacts
		WHERE product_id = ? AND version = ?
		ORDER BY id DESC`, productID, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Artifact, 0, len(ids))
	for _, id := range ids {
		a, err := c.getArtifactLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// SoftDeleteArtifact marks an artifact deleted. Bytes stay until the
// reaper purges them past retention.
func (c *Catalog) SoftDeleteArtifact(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`
		UPDATE pipeline_artifacts SET status = ?, deleted_at = ?
		WHERE id = ? AND status != ?`,
		string(ArtifactDeleted), time.Now().UTC(), id, string(ArtifactPurged))
	return err
}

// SetArtifactRetention overrides the retention class, e.g. keep_forever on
// promotion.
func (c *Catalog) SetArtifactRetention(productID int64, version int, retention Retention) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`
		UPDATE pipeline_artifacts SET retention = ?
		WHERE product_id = ? AND version = ? AND status != ?`,
		string(retention), productID, version, string(ArtifactPurged))
	return err
}

// Lineage returns all transitive upstream artifacts of id, following
// input_artifacts references. The result excludes id itself.
func (c *Catalog) Lineage(id int64) ([]Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := map[int64]bool{id: true}
	queue := []int64{id}
	var out []Artifact

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		a, err := c.getArtifactLocked(cur)
		if err != nil {
			return nil, err
		}
		if cur != id {
			out = append(out, *a)
		}
		for _, ref := range a.InputArtifacts {
			if seen[ref.ArtifactID] {
				continue
			}
			seen[ref.ArtifactID] = true
			queue = append(queue, ref.ArtifactID)
		}
	}
	return out, nil
}

// ReapExpired purges soft-deleted artifacts whose retention window has
// elapsed, removing the underlying object via remove. Rows move to purged
// even if the object removal fails (the object may already be gone).
func (c *Catalog) ReapExpired(now time.Time, remove func(bucket, key string) error) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`
		SELECT id, bucket, object_key, retention, deleted_at
		FROM pipeline_artifacts WHERE status = ?`, string(ArtifactDeleted))
	if err != nil {
		return 0, err
	}

	type victim struct {
		id          int64
		bucket, key string
	}
	var victims []victim
	for rows.Next() {
		var v victim
		var retention string
		var deleted sql.NullTime
		if err := rows.Scan(&v.id, &v.bucket, &v.key, &retention, &deleted); err != nil {
			rows.Close()
			return 0, err
		}
		window := retentionWindow(Retention(retention))
		if window == 0 || !deleted.Valid {
			continue
		}
		if now.Sub(deleted.Time) >= window {
			victims = append(victims, v)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	log := logging.L(logging.CategoryCatalog)
	purged := 0
	for _, v := range victims {
		if remove != nil {
			if err := remove(v.bucket, v.key); err != nil {
				log.Warnw("reaper object removal failed", "bucket", v.bucket, "key", v.key, "error", err)
			}
		}
		if _, err := c.db.Exec(`UPDATE pipeline_artifacts SET status = ? WHERE id = ?`,
			string(ArtifactPurged), v.id); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
