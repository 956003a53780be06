// Package logging provides categorized, zap-backed logging for aird.
// Each subsystem logs through a named category so pipeline stages can be
// traced independently. Categories can be silenced per config; the level
// and encoding are set once at startup.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	// Core categories
	CategoryBoot    Category = "boot"    // Startup, config resolution
	CategoryCatalog Category = "catalog" // SQLite catalog operations
	CategoryStore   Category = "store"   // Object store reads/writes

	// Pipeline stage categories
	CategoryPipeline    Category = "pipeline"    // Stage sequencing, tracker
	CategoryPreprocess  Category = "preprocess"  // Extraction, chunking
	CategoryScoring     Category = "scoring"     // Chunk metric computation
	CategoryFingerprint Category = "fingerprint" // Fingerprint aggregation
	CategoryPolicy      Category = "policy"      // Policy evaluation, optimizer
	CategoryIndexing    Category = "indexing"    // Embedding + upsert
	CategoryReport      Category = "report"      // Validation CSV, trust PDF

	// Infrastructure categories
	CategoryEmbedding Category = "embedding" // Embedding engines
	CategoryVector    Category = "vector"    // Qdrant client
	CategoryACL       Category = "acl"       // ACL filtering, playground
	CategoryAnalyzer  Category = "analyzer"  // Content analysis, playbooks
)

// Config controls the global logging setup.
type Config struct {
	Level      string          `yaml:"level" json:"level"`             // debug/info/warn/error
	JSONFormat bool            `yaml:"json_format" json:"json_format"` // JSON vs console encoding
	Categories map[string]bool `yaml:"categories" json:"categories"`   // nil = all enabled
}

var (
	mu       sync.RWMutex
	root     *zap.Logger
	cfg      Config
	loggers  = make(map[Category]*zap.SugaredLogger)
	nopSugar = zap.NewNop().Sugar()
)

// Initialize installs the root logger. Safe to call more than once; the
// last call wins. Before Initialize, all categories are no-ops.
func Initialize(c Config) error {
	level := zapcore.InfoLevel
	switch c.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	zc := zap.NewProductionConfig()
	if !c.JSONFormat {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	cfg = c
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// SetRoot replaces the root logger directly. Used by tests and by the CLI
// when it builds its own zap config.
func SetRoot(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Enabled reports whether a category emits logs.
func Enabled(cat Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	on, ok := cfg.Categories[string(cat)]
	if !ok {
		return true
	}
	return on
}

// L returns the sugared logger for a category. Disabled or uninitialized
// categories return a no-op logger, so call sites never nil-check.
func L(cat Category) *zap.SugaredLogger {
	if !Enabled(cat) {
		return nopSugar
	}

	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	r := root
	mu.RUnlock()

	if r == nil {
		return nopSugar
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := r.Named(string(cat)).Sugar()
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}
