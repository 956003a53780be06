// Package objectstore abstracts byte and JSON I/O over a pluggable object
// store. Two production backends are supported: MinIO for self-hosted
// deployments and S3 with ambient credentials for cloud. A small in-memory
// backend backs tests and local dry runs.
//
// Bucket existence is ensured lazily on first write, never at startup; a
// backend that cannot create a bucket logs and proceeds, letting the write
// itself surface the error.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("objectstore: object not found")

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
}

// ObjectStore is the uniform storage interface consumed by the pipeline.
type ObjectStore interface {
	// PutBytes writes data under bucket/key with the given content type.
	PutBytes(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// PutJSON marshals v and writes it as application/json.
	PutJSON(ctx context.Context, bucket, key string, v any) error

	// GetBytes reads the full object. Returns ErrNotFound if absent.
	GetBytes(ctx context.Context, bucket, key string) ([]byte, error)

	// GetJSON reads the object and unmarshals it into v.
	GetJSON(ctx context.Context, bucket, key string, v any) error

	// ListObjects enumerates objects under a key prefix.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// ObjectExists reports whether bucket/key exists.
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)

	// PresignedURL returns a GET URL valid for expiry. When inline is true
	// the response disposition allows in-browser viewing of PDFs/images.
	PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration, inline bool) (string, error)

	// CopyObject copies srcBucket/srcKey to dstBucket/dstKey.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error

	// DeleteObject removes bucket/key. Deleting a missing object is not
	// an error.
	DeleteObject(ctx context.Context, bucket, key string) error
}

// opTimeout bounds a single object store call.
const opTimeout = 30 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}
