package objectstore

import (
	"fmt"
	"regexp"
	"strings"
)

// Key layout is deterministic per (workspace, product, version, stage):
//
//	ws/{ws}/prod/{prod}/v/{n}/raw/{safe_stem}.txt
//	                         /raw/{safe_stem}.manifest.json
//	                         /clean/{safe_stem}.jsonl
//	                         /clean/metrics.json
//	                         /chunk/
//	                         /embed/
//	                         /artifacts/{safe_name}
//
// Distinct versions never share keys, so concurrent runs of different
// versions cannot collide.

// Scope identifies one (workspace, product, version) triple.
type Scope struct {
	Workspace int64
	Product   int64
	Version   int
}

func (s Scope) base() string {
	return fmt.Sprintf("ws/%d/prod/%d/v/%d", s.Workspace, s.Product, s.Version)
}

// RawPrefix returns the raw byte prefix for the scope.
func (s Scope) RawPrefix() string { return s.base() + "/raw/" }

// CleanPrefix returns the processed JSONL prefix for the scope.
func (s Scope) CleanPrefix() string { return s.base() + "/clean/" }

// ChunkPrefix returns the chunk working prefix for the scope.
func (s Scope) ChunkPrefix() string { return s.base() + "/chunk/" }

// EmbedPrefix returns the embedding working prefix for the scope.
func (s Scope) EmbedPrefix() string { return s.base() + "/embed/" }

// ArtifactsPrefix returns the artifact prefix for the scope.
func (s Scope) ArtifactsPrefix() string { return s.base() + "/artifacts/" }

// RawTextKey returns the key of the raw text object for a file stem.
func (s Scope) RawTextKey(stem string) string {
	return s.RawPrefix() + SafeFilename(stem) + ".txt"
}

// ManifestKey returns the key of the per-file ingest manifest.
func (s Scope) ManifestKey(stem string) string {
	return s.RawPrefix() + SafeFilename(stem) + ".manifest.json"
}

// ProcessedKey returns the key of the processed JSONL for a file stem.
func (s Scope) ProcessedKey(stem string) string {
	return s.CleanPrefix() + SafeFilename(stem) + ".jsonl"
}

// MetricsKey returns the key of the per-version metrics.json.
func (s Scope) MetricsKey() string { return s.CleanPrefix() + "metrics.json" }

// ArtifactKey returns the key of a named artifact.
func (s Scope) ArtifactKey(name string) string {
	return s.ArtifactsPrefix() + SafeFilename(name)
}

// ExportPrefix returns the product-level export prefix (version independent).
func ExportPrefix(workspace, product int64) string {
	return fmt.Sprintf("ws/%d/prod/%d/exports/", workspace, product)
}

// CompliancePrefix returns the product-level compliance prefix.
func CompliancePrefix(workspace, product int64) string {
	return fmt.Sprintf("ws/%d/prod/%d/compliance/", workspace, product)
}

var (
	unsafeChars   = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// SafeFilename restricts a filename to [A-Za-z0-9_.-], collapsing runs of
// underscores. Never returns an empty string.
func SafeFilename(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "file"
	}
	return s
}
