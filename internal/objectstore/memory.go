package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject // "bucket/key"
}

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

func memKey(bucket, key string) string { return bucket + "/" + key }

// PutBytes stores a copy of data.
func (s *MemoryStore) PutBytes(_ context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[memKey(bucket, key)] = memObject{data: cp, contentType: contentType, modified: time.Now()}
	return nil
}

// PutJSON marshals v and stores it.
func (s *MemoryStore) PutJSON(ctx context.Context, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.PutBytes(ctx, bucket, key, data, "application/json")
}

// GetBytes returns a copy of the stored data.
func (s *MemoryStore) GetBytes(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[memKey(bucket, key)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

// GetJSON unmarshals the stored object into v.
func (s *MemoryStore) GetJSON(ctx context.Context, bucket, key string, v any) error {
	data, err := s.GetBytes(ctx, bucket, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ListObjects enumerates objects under a prefix in key order.
func (s *MemoryStore) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ObjectInfo
	pre := memKey(bucket, prefix)
	for k, obj := range s.objects {
		if !strings.HasPrefix(k, pre) {
			continue
		}
		sum := md5.Sum(obj.data)
		out = append(out, ObjectInfo{
			Key:          strings.TrimPrefix(k, bucket+"/"),
			Size:         int64(len(obj.data)),
			LastModified: obj.modified,
			ETag:         hex.EncodeToString(sum[:]),
			ContentType:  obj.contentType,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ObjectExists reports whether bucket/key exists.
func (s *MemoryStore) ObjectExists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[memKey(bucket, key)]
	return ok, nil
}

// PresignedURL returns a synthetic URL; it carries enough to be asserted
// on in tests but is not resolvable.
func (s *MemoryStore) PresignedURL(_ context.Context, bucket, key string, expiry time.Duration, inline bool) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[memKey(bucket, key)]; !ok {
		return "", ErrNotFound
	}
	disp := "attachment"
	if inline {
		disp = "inline"
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d&disposition=%s", bucket, key, int(expiry.Seconds()), disp), nil
}

// DeleteObject removes the object if present.
func (s *MemoryStore) DeleteObject(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, memKey(bucket, key))
	return nil
}

// CopyObject copies within the store.
func (s *MemoryStore) CopyObject(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.objects[memKey(srcBucket, srcKey)]
	if !ok {
		return ErrNotFound
	}
	cp := make([]byte, len(src.data))
	copy(cp, src.data)
	s.objects[memKey(dstBucket, dstKey)] = memObject{data: cp, contentType: src.contentType, modified: time.Now()}
	return nil
}
