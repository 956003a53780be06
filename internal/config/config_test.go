package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "minio" {
		t.Fatalf("default backend = %q, want minio", cfg.Storage.Backend)
	}
	if cfg.Pipeline.MinSecure != 90 {
		t.Fatalf("default min_secure = %v, want 90", cfg.Pipeline.MinSecure)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aird.yaml")
	body := `
storage:
  backend: s3
  region: eu-west-1
pipeline:
  default_playbook: REGULATORY
  min_trust_score: 60
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AIRD_DEFAULT_PLAYBOOK", "SCANNED")
	t.Setenv("AIRD_QDRANT_PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Region != "eu-west-1" {
		t.Fatalf("yaml storage not applied: %+v", cfg.Storage)
	}
	if cfg.Pipeline.MinTrustScore != 60 {
		t.Fatalf("yaml min_trust_score = %v, want 60", cfg.Pipeline.MinTrustScore)
	}
	// Env wins over file.
	if cfg.Pipeline.DefaultPlaybook != "SCANNED" {
		t.Fatalf("env override lost: %q", cfg.Pipeline.DefaultPlaybook)
	}
	if cfg.Vector.Port != 7000 {
		t.Fatalf("env port override lost: %d", cfg.Vector.Port)
	}
}
