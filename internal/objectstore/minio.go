package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"aird/internal/logging"
)

// MinioStore is the self-hosted backend, speaking S3 protocol to a MinIO
// (or compatible) endpoint.
type MinioStore struct {
	client *minio.Client

	mu      sync.Mutex
	ensured map[string]bool
}

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// NewMinioStore connects to the MinIO endpoint. No bucket is touched here;
// buckets are ensured lazily on first write.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	logging.L(logging.CategoryStore).Infow("minio store ready", "endpoint", opts.Endpoint, "secure", opts.Secure)
	return &MinioStore{client: client, ensured: make(map[string]bool)}, nil
}

// ensureBucket creates the bucket if missing. Failure is logged, not
// returned: the subsequent write reports the real error.
func (s *MinioStore) ensureBucket(ctx context.Context, bucket string) {
	s.mu.Lock()
	if s.ensured[bucket] {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		logging.L(logging.CategoryStore).Warnw("bucket check failed", "bucket", bucket, "error", err)
		return
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			logging.L(logging.CategoryStore).Warnw("bucket create failed", "bucket", bucket, "error", err)
			return
		}
	}
	s.mu.Lock()
	s.ensured[bucket] = true
	s.mu.Unlock()
}

// PutBytes writes data under bucket/key.
func (s *MinioStore) PutBytes(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	s.ensureBucket(ctx, bucket)
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("minio put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutJSON marshals v and writes it as application/json.
func (s *MinioStore) PutJSON(ctx context.Context, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", bucket, key, err)
	}
	return s.PutBytes(ctx, bucket, key, data, "application/json")
}

// GetBytes reads the full object.
func (s *MinioStore) GetBytes(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("minio read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// GetJSON reads the object and unmarshals it into v.
func (s *MinioStore) GetJSON(ctx context.Context, bucket, key string, v any) error {
	data, err := s.GetBytes(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ListObjects enumerates objects under a prefix.
func (s *MinioStore) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list %s/%s: %w", bucket, prefix, obj.Err)
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
			ContentType:  obj.ContentType,
		})
	}
	return out, nil
}

// ObjectExists reports whether bucket/key exists.
func (s *MinioStore) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
			return false, nil
		}
		return false, fmt.Errorf("minio stat %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PresignedURL returns a GET URL for the object.
func (s *MinioStore) PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration, inline bool) (string, error) {
	params := url.Values{}
	if inline {
		params.Set("response-content-disposition", "inline")
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("minio presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

// DeleteObject removes bucket/key.
func (s *MinioStore) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
			return nil
		}
		return fmt.Errorf("minio remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

// CopyObject copies within or across buckets.
func (s *MinioStore) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	s.ensureBucket(ctx, dstBucket)
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey})
	if err != nil {
		return fmt.Errorf("minio copy %s/%s -> %s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
	}
	return nil
}
