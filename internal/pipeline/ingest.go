package pipeline

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"aird/internal/catalog"
	"aird/internal/logging"
	"aird/internal/objectstore"
	"aird/internal/types"
)

// Ingest lands one file's bytes in the raw bucket for (product, version)
// and catalogs it. Text files are stored as the canonical .txt object;
// binary formats keep their extension and are extracted at preprocess
// time. Re-ingesting a stem within the same version is rejected by the
// catalog's uniqueness constraint.
func Ingest(ctx context.Context, rt *Runtime, prod *catalog.Product, version int, filename string, data []byte, source string) (*catalog.RawFile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", types.ErrInputMissing, filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	stem := objectstore.SafeFilename(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))

	scope := objectstore.Scope{Workspace: prod.WorkspaceID, Product: prod.ID, Version: version}
	view := &View{
		Store:         rt.Objects,
		RawBucket:     rt.Config.Storage.RawBucket,
		Bucket:        rt.Config.Storage.CleanBucket,
		ExportsBucket: rt.Config.Storage.ExportsBucket,
		Scope:         scope,
		Extract:       rt.Extract,
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var key string
	if isTextExt(ext) && utf8.Valid(data) {
		if err := view.PutRawText(ctx, stem, string(data)); err != nil {
			return nil, err
		}
		key = scope.RawTextKey(stem)
	} else {
		if err := view.PutRawBytes(ctx, stem, ext, data, contentType); err != nil {
			return nil, err
		}
		key = scope.RawPrefix() + objectstore.SafeFilename(stem) + ext
	}

	checksum := ChecksumMD5(data)
	manifest := Manifest{
		Filename:    filepath.Base(filename),
		FileStem:    stem,
		SizeBytes:   int64(len(data)),
		ChecksumMD5: checksum,
		ContentType: contentType,
		IngestedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := view.PutManifest(ctx, stem, manifest); err != nil {
		return nil, err
	}

	raw := &catalog.RawFile{
		ProductID:   prod.ID,
		Version:     version,
		Filename:    filepath.Base(filename),
		FileStem:    stem,
		Bucket:      view.RawBucket,
		ObjectKey:   key,
		Size:        int64(len(data)),
		Checksum:    checksum,
		ContentType: contentType,
		DataSource:  source,
	}
	if _, err := rt.Catalog.RegisterRawFile(raw); err != nil {
		return nil, err
	}

	logging.L(logging.CategoryPipeline).Infow("file ingested",
		"stem", stem, "bytes", len(data), "key", key, "version", version)
	return raw, nil
}

func isTextExt(ext string) bool {
	switch ext {
	case ".txt", ".md", ".rst", ".csv", ".json", ".jsonl", ".yaml", ".yml", ".xml", ".html", ".log", "":
		return true
	}
	return false
}
