package catalog

import (
	"database/sql"
	"fmt"
)

// RegisterRawFile catalogs an ingested byte object. (product, version,
// file_stem) is unique; re-registering the same stem for the same version
// is an integrity error — reingestion bumps the version instead.
func (c *Catalog) RegisterRawFile(f *RawFile) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f.Status == "" {
		f.Status = RawIngested
	}
	res, err := c.db.Exec(`
		INSERT INTO raw_files (product_id, version, filename, file_stem, bucket,
		    object_key, size, checksum, content_type, status, data_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ProductID, f.Version, f.Filename, f.FileStem, f.Bucket,
		f.ObjectKey, f.Size, f.Checksum, f.ContentType, string(f.Status), nullable(f.DataSource))
	if err != nil {
		return 0, fmt.Errorf("register raw file %q v%d: %w", f.FileStem, f.Version, err)
	}
	id, _ := res.LastInsertId()
	f.ID = id
	return id, nil
}

// SetRawFileStatus transitions one raw file.
func (c *Catalog) SetRawFileStatus(id int64, status RawFileStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`UPDATE raw_files SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id)
	return err
}

// SetRawFileStatusByStem transitions a raw file addressed by its stem.
func (c *Catalog) SetRawFileStatusByStem(productID int64, version int, stem string, status RawFileStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`
		UPDATE raw_files SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND version = ? AND file_stem = ?`,
		string(status), productID, version, stem)
	return err
}

// ListRawFiles returns the raw files of one (product, version).
func (c *Catalog) ListRawFiles(productID int64, version int) ([]RawFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`
		SELECT id, product_id, version, filename, file_stem, bucket, object_key,
		       size, checksum, content_type, status, data_source, created_at
		FROM raw_files
		WHERE product_id = ? AND version = ?
		ORDER BY file_stem`, productID, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawFile
	for rows.Next() {
		var f RawFile
		var status string
		var source sql.NullString
		if err := rows.Scan(&f.ID, &f.ProductID, &f.Version, &f.Filename, &f.FileStem,
			&f.Bucket, &f.ObjectKey, &f.Size, &f.Checksum, &f.ContentType,
			&status, &source, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Status = RawFileStatus(status)
		if source.Valid {
			f.DataSource = source.String
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
