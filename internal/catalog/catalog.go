// Package catalog persists the relational side of the pipeline in SQLite:
// products with their versions and configs, the raw file catalog, pipeline
// runs, the artifact registry with lineage and retention, and ACL rows.
// Object bytes live in the object store; the catalog only points at them.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"aird/internal/logging"
)

// Catalog wraps the SQLite database.
type Catalog struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the catalog database at path, creating directories and
// running schema migrations as needed.
func Open(path string) (*Catalog, error) {
	log := logging.L(logging.CategoryCatalog)
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	// Single writer; SQLite serializes anyway and this avoids SQLITE_BUSY
	// under concurrent stage commits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debugw("set busy_timeout failed", "error", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debugw("set journal_mode failed", "error", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debugw("set synchronous failed", "error", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		log.Debugw("set foreign_keys failed", "error", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	log.Infow("catalog ready", "path", path)
	return c, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error { return c.db.Close() }

// DB exposes the handle for package-internal helpers and tests.
func (c *Catalog) DB() *sql.DB { return c.db }

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    workspace_id    INTEGER NOT NULL,
    name            TEXT NOT NULL,
    current_version INTEGER NOT NULL DEFAULT 1,
    promoted_version INTEGER,
    playbook_id     TEXT NOT NULL DEFAULT '',
    chunking_config TEXT NOT NULL DEFAULT '{}',
    embedding_config TEXT NOT NULL DEFAULT '{}',
    readiness_fingerprint TEXT,
    trust_score     REAL,
    policy_status   TEXT,
    policy_violations TEXT,
    preprocessing_stats TEXT,
    validation_summary_path TEXT,
    trust_report_path TEXT,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(workspace_id, name)
);

CREATE TABLE IF NOT EXISTS raw_files (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id   INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    version      INTEGER NOT NULL,
    filename     TEXT NOT NULL,
    file_stem    TEXT NOT NULL,
    bucket       TEXT NOT NULL,
    object_key   TEXT NOT NULL,
    size         INTEGER NOT NULL DEFAULT 0,
    checksum     TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'ingested',
    data_source  TEXT,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(product_id, version, file_stem)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id   INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    version      INTEGER NOT NULL,
    status       TEXT NOT NULL DEFAULT 'queued',
    dag_id       TEXT NOT NULL DEFAULT '',
    metrics      TEXT NOT NULL DEFAULT '{}',
    started_at   DATETIME,
    finished_at  DATETIME,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pipeline_artifacts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        INTEGER NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
    workspace_id  INTEGER NOT NULL,
    product_id    INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    version       INTEGER NOT NULL,
    stage_name    TEXT NOT NULL,
    artifact_type TEXT NOT NULL,
    artifact_name TEXT NOT NULL,
    bucket        TEXT NOT NULL,
    object_key    TEXT NOT NULL,
    size          INTEGER NOT NULL DEFAULT 0,
    checksum      TEXT NOT NULL DEFAULT '',
    input_artifacts TEXT NOT NULL DEFAULT '[]',
    artifact_metadata TEXT NOT NULL DEFAULT '{}',
    status        TEXT NOT NULL DEFAULT 'active',
    retention     TEXT NOT NULL DEFAULT '90d',
    deleted_at    DATETIME,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artifacts_product_version
    ON pipeline_artifacts(product_id, version);
CREATE INDEX IF NOT EXISTS idx_artifacts_status
    ON pipeline_artifacts(status);

CREATE TABLE IF NOT EXISTS acls (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     TEXT NOT NULL,
    product_id  INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    access_type TEXT NOT NULL,
    index_scope TEXT NOT NULL DEFAULT '',
    doc_scope   TEXT NOT NULL DEFAULT '',
    field_scope TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_acls_user_product ON acls(user_id, product_id);
`

// columnMigration adds a column to an existing table when upgrading old
// databases, mirroring the additive migration list pattern.
type columnMigration struct {
	table  string
	column string
	def    string
}

var pendingMigrations = []columnMigration{
	// Indexing stage records which model actually produced the vectors, so
	// later runs of the same version can trust it over the product config.
	{"pipeline_runs", "embedding_model", "TEXT"},
	{"pipeline_runs", "embedding_dimension", "INTEGER"},
}

func (c *Catalog) migrate() error {
	if _, err := c.db.Exec(schema); err != nil {
		return err
	}
	for _, m := range pendingMigrations {
		if c.columnExists(m.table, m.column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.def)
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func (c *Catalog) columnExists(table, column string) bool {
	rows, err := c.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
