package pipeline

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"aird/internal/extract"
	"aird/internal/logging"
	"aird/internal/objectstore"
	"aird/internal/types"
)

// View is the storage adapter a stage sees: all reads and writes are
// bound to one (workspace, product, version) scope, so a stage cannot
// touch another version's keys.
type View struct {
	Store         objectstore.ObjectStore
	RawBucket     string
	Bucket        string // clean bucket: processed JSONL and metrics
	ExportsBucket string // deliverable artifacts
	Scope         objectstore.Scope
	Extract       *extract.Registry
}

// PutRawText writes the canonical UTF-8 text of a file stem.
func (v *View) PutRawText(ctx context.Context, stem, text string) error {
	return v.Store.PutBytes(ctx, v.RawBucket, v.Scope.RawTextKey(stem), []byte(text), "text/plain; charset=utf-8")
}

// PutRawBytes stores the original ingested bytes under the stem with its
// source extension, e.g. the PDF a raw text was extracted from.
func (v *View) PutRawBytes(ctx context.Context, stem, ext string, data []byte, contentType string) error {
	key := v.Scope.RawPrefix() + objectstore.SafeFilename(stem) + ext
	return v.Store.PutBytes(ctx, v.RawBucket, key, data, contentType)
}

// Manifest records provenance of one ingested file.
type Manifest struct {
	Filename    string `json:"filename"`
	FileStem    string `json:"file_stem"`
	SizeBytes   int64  `json:"size_bytes"`
	ChecksumMD5 string `json:"checksum_md5"`
	ContentType string `json:"content_type,omitempty"`
	IngestedAt  string `json:"ingested_at"`
}

// PutManifest writes the ingest manifest for a stem.
func (v *View) PutManifest(ctx context.Context, stem string, m Manifest) error {
	return v.Store.PutJSON(ctx, v.RawBucket, v.Scope.ManifestKey(stem), m)
}

// GetRawText resolves the text of a stem: the canonical .txt object if it
// is valid UTF-8, else a stored binary sibling run through the extractor
// registry. Returns empty text without error when nothing is found; the
// caller decides whether that is a skip.
func (v *View) GetRawText(ctx context.Context, stem string) (string, error) {
	data, err := v.Store.GetBytes(ctx, v.RawBucket, v.Scope.RawTextKey(stem))
	if err == nil {
		if utf8.Valid(data) {
			return string(data), nil
		}
		return "", fmt.Errorf("%w: raw text for %q is not valid UTF-8", types.ErrIntegrity, stem)
	}
	if !errors.Is(err, objectstore.ErrNotFound) {
		return "", err
	}

	for _, ext := range []string{".pdf", ".epub", ".xps"} {
		key := v.Scope.RawPrefix() + objectstore.SafeFilename(stem) + ext
		data, err := v.Store.GetBytes(ctx, v.RawBucket, key)
		if err != nil {
			continue
		}
		text, err := v.Extract.Text(stem+ext, data)
		if err != nil {
			return "", err
		}
		logging.L(logging.CategoryPreprocess).Debugw("raw text recovered from binary",
			"stem", stem, "ext", ext, "chars", len(text))
		return text, nil
	}
	return "", nil
}

// PutProcessedJSONL writes the processed chunk records of a stem, one
// JSON object per line.
func (v *View) PutProcessedJSONL(ctx context.Context, stem string, records []types.ChunkRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode chunk %s: %w", rec.ChunkID, err)
		}
	}
	return v.Store.PutBytes(ctx, v.Bucket, v.Scope.ProcessedKey(stem), buf.Bytes(), "application/x-ndjson")
}

// GetProcessedJSONL reads back a stem's chunk records. Blank lines are
// skipped; a malformed line is an integrity error.
func (v *View) GetProcessedJSONL(ctx context.Context, stem string) ([]types.ChunkRecord, error) {
	data, err := v.Store.GetBytes(ctx, v.Bucket, v.Scope.ProcessedKey(stem))
	if err != nil {
		return nil, err
	}
	var out []types.ChunkRecord
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec types.ChunkRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", types.ErrIntegrity, v.Scope.ProcessedKey(stem), i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// PutMetricsJSON writes the per-version metrics list.
func (v *View) PutMetricsJSON(ctx context.Context, metrics []types.ChunkMetrics) error {
	return v.Store.PutJSON(ctx, v.Bucket, v.Scope.MetricsKey(), metrics)
}

// GetMetricsJSON reads the metrics list. A single object written by an
// older producer is wrapped into a one-element list.
func (v *View) GetMetricsJSON(ctx context.Context) ([]types.ChunkMetrics, error) {
	data, err := v.Store.GetBytes(ctx, v.Bucket, v.Scope.MetricsKey())
	if err != nil {
		return nil, err
	}
	var list []types.ChunkMetrics
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single types.ChunkMetrics
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrIntegrity, v.Scope.MetricsKey(), err)
	}
	return []types.ChunkMetrics{single}, nil
}

// PutArtifact writes a named artifact to the exports bucket and returns
// its object key.
func (v *View) PutArtifact(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := v.Scope.ArtifactKey(name)
	if err := v.Store.PutBytes(ctx, v.ExportsBucket, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// ListProcessedStems enumerates the stems with processed JSONL present.
func (v *View) ListProcessedStems(ctx context.Context) ([]string, error) {
	objs, err := v.Store.ListObjects(ctx, v.Bucket, v.Scope.CleanPrefix())
	if err != nil {
		return nil, err
	}
	var stems []string
	for _, o := range objs {
		base := o.Key[strings.LastIndex(o.Key, "/")+1:]
		if strings.HasSuffix(base, ".jsonl") {
			stems = append(stems, strings.TrimSuffix(base, ".jsonl"))
		}
	}
	return stems, nil
}

// ChecksumMD5 is the checksum format recorded in manifests and the
// artifact registry.
func ChecksumMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
