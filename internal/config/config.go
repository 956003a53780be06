// Package config loads aird configuration from YAML with environment
// overrides. A .env file in the working directory is honored before env
// lookups so local setups stay out of the shell profile.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"aird/internal/logging"
)

// Config holds all aird configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Logging   logging.Config  `yaml:"logging"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	// Backend: "minio" (self-hosted) or "s3" (cloud, ambient credentials)
	Backend string `yaml:"backend"`

	// MinIO settings
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`

	// S3 settings
	Region string `yaml:"region"`

	// Buckets
	RawBucket     string `yaml:"raw_bucket"`
	CleanBucket   string `yaml:"clean_bucket"`
	ExportsBucket string `yaml:"exports_bucket"`
}

// VectorConfig configures the qdrant connection.
type VectorConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// EmbeddingConfig configures the default embedding model.
type EmbeddingConfig struct {
	Model          string `yaml:"model"`     // registry id, e.g. "minilm"
	Dimension      int    `yaml:"dimension"` // 0 = use registry dimension
	APIKey         string `yaml:"api_key"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
}

// PipelineConfig configures stage behavior and policy thresholds.
type PipelineConfig struct {
	PlaybookDir        string  `yaml:"playbook_dir"`
	ScoringWeightsPath string  `yaml:"scoring_weights_path"`
	DefaultPlaybook    string  `yaml:"default_playbook"`
	ScoreThreshold     float64 `yaml:"score_threshold"` // validation pass/fail line

	// Policy thresholds
	MinTrustScore       float64 `yaml:"min_trust_score"`
	MinSecure           float64 `yaml:"min_secure"`
	MinMetadataPresence float64 `yaml:"min_metadata_presence"`
	MinKBReady          float64 `yaml:"min_kb_ready"`

	EnableDeduplication bool `yaml:"enable_deduplication"`
	EnableValidation    bool `yaml:"enable_validation"`
	EnablePDFReports    bool `yaml:"enable_pdf_reports"`
}

// CatalogConfig configures the SQLite catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:       "minio",
			Endpoint:      "localhost:9000",
			RawBucket:     "aird-raw",
			CleanBucket:   "aird-clean",
			ExportsBucket: "aird-exports",
		},
		Vector: VectorConfig{
			Host: "localhost",
			Port: 6334,
		},
		Embedding: EmbeddingConfig{
			Model:          "minilm",
			OllamaEndpoint: "http://localhost:11434",
		},
		Pipeline: PipelineConfig{
			PlaybookDir:         "playbooks",
			ScoringWeightsPath:  "scoring_weights.json",
			DefaultPlaybook:     "TECH",
			ScoreThreshold:      50,
			MinTrustScore:       50,
			MinSecure:           90,
			MinMetadataPresence: 80,
			MinKBReady:          50,
			EnableValidation:    true,
			EnablePDFReports:    true,
		},
		Catalog: CatalogConfig{
			Path: filepath.Join(".aird", "catalog.db"),
		},
		Logging: logging.Config{Level: "info"},
	}
}

// Load reads the config file at path (optional), then applies AIRD_* env
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	// Side effect only; a missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides maps AIRD_* environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(dst *float64, key string) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setStr(&cfg.Storage.Backend, "AIRD_STORAGE_BACKEND")
	setStr(&cfg.Storage.Endpoint, "AIRD_MINIO_ENDPOINT")
	setStr(&cfg.Storage.AccessKey, "AIRD_MINIO_ACCESS_KEY")
	setStr(&cfg.Storage.SecretKey, "AIRD_MINIO_SECRET_KEY")
	setBool(&cfg.Storage.Secure, "AIRD_MINIO_SECURE")
	setStr(&cfg.Storage.Region, "AIRD_S3_REGION")
	setStr(&cfg.Storage.RawBucket, "AIRD_RAW_BUCKET")
	setStr(&cfg.Storage.CleanBucket, "AIRD_CLEAN_BUCKET")
	setStr(&cfg.Storage.ExportsBucket, "AIRD_EXPORTS_BUCKET")

	setStr(&cfg.Vector.Host, "AIRD_QDRANT_HOST")
	setInt(&cfg.Vector.Port, "AIRD_QDRANT_PORT")
	setStr(&cfg.Vector.APIKey, "AIRD_QDRANT_API_KEY")

	setStr(&cfg.Embedding.Model, "AIRD_EMBEDDING_MODEL")
	setStr(&cfg.Embedding.APIKey, "AIRD_EMBEDDING_API_KEY")
	setStr(&cfg.Embedding.OllamaEndpoint, "AIRD_OLLAMA_ENDPOINT")

	setStr(&cfg.Pipeline.PlaybookDir, "AIRD_PLAYBOOK_DIR")
	setStr(&cfg.Pipeline.ScoringWeightsPath, "AIRD_SCORING_WEIGHTS")
	setStr(&cfg.Pipeline.DefaultPlaybook, "AIRD_DEFAULT_PLAYBOOK")
	setFloat(&cfg.Pipeline.ScoreThreshold, "AIRD_SCORE_THRESHOLD")
	setFloat(&cfg.Pipeline.MinTrustScore, "AIRD_MIN_TRUST_SCORE")
	setFloat(&cfg.Pipeline.MinSecure, "AIRD_MIN_SECURE")
	setFloat(&cfg.Pipeline.MinMetadataPresence, "AIRD_MIN_METADATA_PRESENCE")
	setFloat(&cfg.Pipeline.MinKBReady, "AIRD_MIN_KB_READY")
	setBool(&cfg.Pipeline.EnableDeduplication, "AIRD_ENABLE_DEDUPLICATION")
	setBool(&cfg.Pipeline.EnableValidation, "AIRD_ENABLE_VALIDATION")
	setBool(&cfg.Pipeline.EnablePDFReports, "AIRD_ENABLE_PDF_REPORTS")

	setStr(&cfg.Catalog.Path, "AIRD_CATALOG_PATH")
	setStr(&cfg.Logging.Level, "AIRD_LOG_LEVEL")
}
