package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and dry runs. It
// implements the same cosine ranking and filter semantics as the Qdrant
// implementation.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	aliases     map[string]string
}

type memCollection struct {
	vectorSize uint64
	points     map[uint64]Point
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
		aliases:     make(map[string]string),
	}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, name string, vectorSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &memCollection{vectorSize: vectorSize, points: make(map[uint64]Point)}
	}
	return nil
}

func (s *MemoryStore) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemoryStore) GetCollectionInfo(_ context.Context, name string) (*CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return &CollectionInfo{PointsCount: uint64(len(c.points)), VectorSize: c.vectorSize}, nil
}

func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) UpsertPoints(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, collection string, vector []float32, limit uint64, scoreThreshold float32, filter *Filter) ([]ScoredPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	var hits []ScoredPoint
	for _, p := range c.points {
		if !matches(p.Payload, filter) {
			continue
		}
		score := cosine(vector, p.Vector)
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}
		hits = append(hits, ScoredPoint{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryStore) Scroll(_ context.Context, collection string, filter *Filter, limit uint32, offset uint64) ([]ScoredPoint, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	ids := make([]uint64, 0, len(c.points))
	for id := range c.points {
		if id >= offset {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []ScoredPoint
	var lastID uint64
	for _, id := range ids {
		p := c.points[id]
		if !matches(p.Payload, filter) {
			continue
		}
		out = append(out, ScoredPoint{ID: id, Payload: p.Payload})
		lastID = id
		if uint32(len(out)) == limit {
			break
		}
	}

	var next uint64
	if uint32(len(out)) == limit && lastID > 0 {
		next = lastID + 1
	}
	return out, next, nil
}

func (s *MemoryStore) SetProdAlias(_ context.Context, alias, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	s.aliases[alias] = collection
	return nil
}

func (s *MemoryStore) GetProdAliasCollection(_ context.Context, alias string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases[alias], nil
}

func matches(payload map[string]any, f *Filter) bool {
	if f == nil {
		return true
	}
	for key, want := range f.Match {
		if fmt.Sprint(payload[key]) != fmt.Sprint(want) {
			return false
		}
	}
	for key, anyOf := range f.MatchAny {
		got := fmt.Sprint(payload[key])
		found := false
		for _, w := range anyOf {
			if got == fmt.Sprint(w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, am, bm float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		am += float64(a[i]) * float64(a[i])
		bm += float64(b[i]) * float64(b[i])
	}
	if am == 0 || bm == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(am) * math.Sqrt(bm)))
}
