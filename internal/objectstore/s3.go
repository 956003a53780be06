package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"aird/internal/logging"
)

// S3Store is the cloud backend. Credentials come from the ambient AWS
// chain (env, shared config, instance role).
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient

	mu      sync.Mutex
	ensured map[string]bool
}

// NewS3Store builds an S3-backed store for the given region.
func NewS3Store(ctx context.Context, region string) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	logging.L(logging.CategoryStore).Infow("s3 store ready", "region", cfg.Region)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		ensured: make(map[string]bool),
	}, nil
}

// ensureBucket creates the bucket if missing. Cloud accounts frequently
// deny CreateBucket; that is logged and the write surfaces the real error.
func (s *S3Store) ensureBucket(ctx context.Context, bucket string) {
	s.mu.Lock()
	if s.ensured[bucket] {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
			logging.L(logging.CategoryStore).Warnw("bucket create failed, proceeding", "bucket", bucket, "error", err)
			return
		}
	}
	s.mu.Lock()
	s.ensured[bucket] = true
	s.mu.Unlock()
}

// PutBytes writes data under bucket/key.
func (s *S3Store) PutBytes(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	s.ensureBucket(ctx, bucket)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutJSON marshals v and writes it as application/json.
func (s *S3Store) PutJSON(ctx context.Context, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", bucket, key, err)
	}
	return s.PutBytes(ctx, bucket, key, data, "application/json")
}

// GetBytes reads the full object.
func (s *S3Store) GetBytes(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// GetJSON reads the object and unmarshals it into v.
func (s *S3Store) GetJSON(ctx context.Context, bucket, key string, v any) error {
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
func (s *S3Store) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			if obj.ETag != nil {
				info.ETag = strings.Trim(*obj.ETag, `"`)
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// ObjectExists reports whether bucket/key exists.
func (s *S3Store) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PresignedURL returns a GET URL for the object.
func (s *S3Store) PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration, inline bool) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if inline {
		input.ResponseContentDisposition = aws.String("inline")
	}
	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// DeleteObject removes bucket/key. S3 delete is idempotent.
func (s *S3Store) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// CopyObject copies within or across buckets.
func (s *S3Store) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	s.ensureBucket(ctx, dstBucket)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		return fmt.Errorf("s3 copy %s/%s -> %s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
	}
	return nil
}
