package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"aird/internal/types"
)

// CreateProduct inserts a product at version 1.
func (c *Catalog) CreateProduct(workspaceID int64, name, playbookID string, emb types.EmbeddingSpec) (*Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	embJSON, _ := json.Marshal(emb)
	res, err := c.db.Exec(`
		INSERT INTO products (workspace_id, name, playbook_id, embedding_config)
		VALUES (?, ?, ?, ?)`,
		workspaceID, name, playbookID, string(embJSON))
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", name, err)
	}
	id, _ := res.LastInsertId()
	return c.getProductLocked(id)
}

// GetProduct loads a product by id.
func (c *Catalog) GetProduct(id int64) (*Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getProductLocked(id)
}

// FindProduct loads a product by (workspace, name). Returns nil, nil when
// absent.
func (c *Catalog) FindProduct(workspaceID int64, name string) (*Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var id int64
	err := c.db.QueryRow(
		`SELECT id FROM products WHERE workspace_id = ? AND name = ?`,
		workspaceID, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.getProductLocked(id)
}

func (c *Catalog) getProductLocked(id int64) (*Product, error) {
	row := c.db.QueryRow(`
		SELECT id, workspace_id, name, current_version, promoted_version,
		       playbook_id, chunking_config, embedding_config,
		       readiness_fingerprint, trust_score, policy_status,
		       policy_violations, created_at, updated_at
		FROM products WHERE id = ?`, id)

	var p Product
	var promoted sql.NullInt64
	var chunkJSON, embJSON string
	var fpJSON, policyStatus, violationsJSON sql.NullString
	var trust sql.NullFloat64
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.CurrentVersion, &promoted,
		&p.PlaybookID, &chunkJSON, &embJSON, &fpJSON, &trust, &policyStatus,
		&violationsJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d not found", id)
	}
	if err != nil {
		return nil, err
	}

	if promoted.Valid {
		v := int(promoted.Int64)
		p.PromotedVersion = &v
	}
	if trust.Valid {
		p.TrustScore = &trust.Float64
	}
	if policyStatus.Valid {
		p.PolicyStatus = policyStatus.String
	}
	_ = json.Unmarshal([]byte(chunkJSON), &p.Chunking)
	_ = json.Unmarshal([]byte(embJSON), &p.Embedding)
	if fpJSON.Valid && fpJSON.String != "" {
		var fp types.Fingerprint
		if json.Unmarshal([]byte(fpJSON.String), &fp) == nil {
			p.Fingerprint = &fp
		}
	}
	if violationsJSON.Valid && violationsJSON.String != "" {
		_ = json.Unmarshal([]byte(violationsJSON.String), &p.PolicyViolations)
	}
	return &p, nil
}

// BumpVersion increments current_version and returns the new version.
// Reingestion never mutates prior raw files; it writes a fresh version.
func (c *Catalog) BumpVersion(productID int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		UPDATE products SET current_version = current_version + 1,
		    updated_at = CURRENT_TIMESTAMP WHERE id = ?`, productID)
	if err != nil {
		return 0, fmt.Errorf("bump version: %w", err)
	}
	var v int
	if err := c.db.QueryRow(`SELECT current_version FROM products WHERE id = ?`, productID).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// SetChunkingConfig stores the resolved chunking configuration.
func (c *Catalog) SetChunkingConfig(productID int64, cfg types.ChunkingConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := json.Marshal(cfg)
	_, err := c.db.Exec(`UPDATE products SET chunking_config = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(data), productID)
	return err
}

// SetEmbeddingSpec stores the embedding model configuration.
func (c *Catalog) SetEmbeddingSpec(productID int64, spec types.EmbeddingSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := json.Marshal(spec)
	_, err := c.db.Exec(`UPDATE products SET embedding_config = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(data), productID)
	return err
}

// SetFingerprint writes the readiness fingerprint and trust score onto the
// product row. Called by the fingerprint stage and updated by indexing.
func (c *Catalog) SetFingerprint(productID int64, fp types.Fingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := json.Marshal(fp)
	_, err := c.db.Exec(`
		UPDATE products SET readiness_fingerprint = ?, trust_score = ?,
		    updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(data), fp.AITrustScore, productID)
	return err
}

// SetPolicyOutcome records the policy evaluation on the product row.
func (c *Catalog) SetPolicyOutcome(productID int64, result types.PolicyResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	violations, _ := json.Marshal(result.Violations)
	_, err := c.db.Exec(`
		UPDATE products SET policy_status = ?, policy_violations = ?,
		    updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(result.Status), string(violations), productID)
	return err
}

// SetPreprocessingStats stores the preprocess stage stats blob.
func (c *Catalog) SetPreprocessingStats(productID int64, stats map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := json.Marshal(stats)
	_, err := c.db.Exec(`UPDATE products SET preprocessing_stats = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(data), productID)
	return err
}

// PreprocessingStats loads the stored preprocess stats, or nil.
func (c *Catalog) PreprocessingStats(productID int64) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var blob sql.NullString
	err := c.db.QueryRow(`SELECT preprocessing_stats FROM products WHERE id = ?`, productID).Scan(&blob)
	if err != nil {
		return nil, err
	}
	if !blob.Valid || blob.String == "" {
		return nil, nil
	}
	var stats map[string]any
	if err := json.Unmarshal([]byte(blob.String), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// SetReportPaths stores validation/report artifact keys on the product.
func (c *Catalog) SetReportPaths(productID int64, validationPath, trustReportPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if validationPath != "" {
		if _, err := c.db.Exec(`UPDATE products SET validation_summary_path = ? WHERE id = ?`, validationPath, productID); err != nil {
			return err
		}
	}
	if trustReportPath != "" {
		if _, err := c.db.Exec(`UPDATE products SET trust_report_path = ? WHERE id = ?`, trustReportPath, productID); err != nil {
			return err
		}
	}
	return nil
}

// SetPromotedVersion records the promoted version after an alias swap.
func (c *Catalog) SetPromotedVersion(productID int64, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`UPDATE products SET promoted_version = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		version, productID)
	return err
}

// DeleteProduct removes a product. Raw files, runs, artifacts, and ACLs
// cascade via foreign keys; vector collections and objects are the
// caller's responsibility.
func (c *Catalog) DeleteProduct(productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`DELETE FROM products WHERE id = ?`, productID)
	return err
}
