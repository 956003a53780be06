package vectorstore

import (
	"context"
	"errors"
)

// ErrCollectionNotFound reports a missing collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Point is one chunk vector with its payload.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      uint64
	Score   float32
	Payload map[string]any
}

// Filter expresses the payload conditions a search or scroll must match.
// Match entries AND together; MatchAny entries AND together as IN lists.
type Filter struct {
	Match    map[string]any
	MatchAny map[string][]any
}

// CollectionInfo reports a collection's point count and vector width.
type CollectionInfo struct {
	PointsCount uint64
	VectorSize  uint64
}

// Store is the vector database surface the pipeline depends on. The
// production implementation talks to Qdrant over gRPC; tests use the
// in-memory store.
type Store interface {
	// EnsureCollection creates a cosine-distance collection if absent.
	EnsureCollection(ctx context.Context, name string, vectorSize uint64) error

	// CollectionExists reports whether the collection is present.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// GetCollectionInfo returns counts and configured vector size.
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// DeleteCollection drops a collection. Missing collections are not
	// an error.
	DeleteCollection(ctx context.Context, name string) error

	// UpsertPoints writes points in one call, waiting for durability.
	UpsertPoints(ctx context.Context, collection string, points []Point) error

	// Search runs k-NN over the collection with optional payload filter
	// and minimum score.
	Search(ctx context.Context, collection string, vector []float32, limit uint64, scoreThreshold float32, filter *Filter) ([]ScoredPoint, error)

	// Scroll pages through points matching the filter, vectors excluded.
	// offset is the numeric point id to start from; the returned next
	// offset is zero when the scroll is exhausted.
	Scroll(ctx context.Context, collection string, filter *Filter, limit uint32, offset uint64) (points []ScoredPoint, next uint64, err error)

	// SetProdAlias atomically repoints the alias at the collection.
	SetProdAlias(ctx context.Context, alias, collection string) error

	// GetProdAliasCollection resolves which collection an alias targets,
	// or "" when the alias does not exist.
	GetProdAliasCollection(ctx context.Context, alias string) (string, error)
}
