package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"aird/internal/logging"
	"aird/internal/types"
)

// QdrantStore implements Store over the Qdrant gRPC client.
type QdrantStore struct {
	client *qdrant.Client
}

// Config holds Qdrant connection settings.
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// NewQdrantStore connects to a Qdrant instance.
func NewQdrantStore(cfg Config) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant client: %v", types.ErrExternalService, err)
	}
	logging.L(logging.CategoryVector).Infow("qdrant client created",
		"host", cfg.Host, "port", cfg.Port, "tls", cfg.UseTLS)
	return &QdrantStore{client: client}, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: collection exists check: %v", types.ErrExternalService, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %v", types.ErrExternalService, name, err)
	}
	logging.L(logging.CategoryVector).Infow("collection created", "collection", name, "vector_size", vectorSize)
	return nil
}

func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("%w: collection exists check: %v", types.ErrExternalService, err)
	}
	return exists, nil
}

func (s *QdrantStore) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: collection info %s: %v", types.ErrExternalService, name, err)
	}

	out := &CollectionInfo{}
	if info.PointsCount != nil {
		out.PointsCount = *info.PointsCount
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		out.VectorSize = params.Size
	}
	return out, nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("%w: delete collection %s: %v", types.ErrExternalService, name, err)
	}
	return nil
}

func (s *QdrantStore) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qp := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qp[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qp,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points into %s: %v",
			types.ErrExternalService, len(points), collection, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit uint64, scoreThreshold float32, filter *Filter) ([]ScoredPoint, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFilter(filter),
	}
	if scoreThreshold > 0 {
		req.ScoreThreshold = qdrant.PtrOf(scoreThreshold)
	}

	hits, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %v", types.ErrExternalService, collection, err)
	}

	out := make([]ScoredPoint, 0, len(hits))
	for _, h := range hits {
		out = append(out, ScoredPoint{
			ID:      h.GetId().GetNum(),
			Score:   h.GetScore(),
			Payload: payloadToMap(h.GetPayload()),
		})
	}
	return out, nil
}

func (s *QdrantStore) Scroll(ctx context.Context, collection string, filter *Filter, limit uint32, offset uint64) ([]ScoredPoint, uint64, error) {
	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if offset > 0 {
		req.Offset = qdrant.NewIDNum(offset)
	}

	pts, err := s.client.Scroll(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: scroll %s: %v", types.ErrExternalService, collection, err)
	}

	out := make([]ScoredPoint, 0, len(pts))
	var lastID uint64
	for _, p := range pts {
		id := p.GetId().GetNum()
		if id > lastID {
			lastID = id
		}
		out = append(out, ScoredPoint{ID: id, Payload: payloadToMap(p.GetPayload())})
	}

	// Point ids are numeric, so the next page starts past the highest id
	// seen. A short page ends the scroll.
	var next uint64
	if uint32(len(pts)) == limit && lastID > 0 {
		next = lastID + 1
	}
	return out, next, nil
}

func (s *QdrantStore) SetProdAlias(ctx context.Context, alias, collection string) error {
	// Delete plus create in one ChangeAliases request; Qdrant applies
	// the actions atomically, so readers never see a missing alias.
	_, err := s.client.GetCollectionsClient().UpdateAliases(ctx, &qdrant.ChangeAliases{
		Actions: []*qdrant.AliasOperations{
			{Action: &qdrant.AliasOperations_DeleteAlias{
				DeleteAlias: &qdrant.DeleteAlias{AliasName: alias},
			}},
			{Action: &qdrant.AliasOperations_CreateAlias{
				CreateAlias: &qdrant.CreateAlias{AliasName: alias, CollectionName: collection},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: alias swap %s -> %s: %v", types.ErrExternalService, alias, collection, err)
	}
	logging.L(logging.CategoryVector).Infow("prod alias swapped", "alias", alias, "collection", collection)
	return nil
}

func (s *QdrantStore) GetProdAliasCollection(ctx context.Context, alias string) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: list aliases: %v", types.ErrExternalService, err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// buildFilter translates a Filter into Qdrant Must conditions.
func buildFilter(f *Filter) *qdrant.Filter {
	if f == nil || (len(f.Match) == 0 && len(f.MatchAny) == 0) {
		return nil
	}
	var must []*qdrant.Condition
	for key, val := range f.Match {
		switch v := val.(type) {
		case string:
			must = append(must, qdrant.NewMatch(key, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(key, v))
		case int:
			must = append(must, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(key, v))
		default:
			must = append(must, qdrant.NewMatch(key, fmt.Sprint(v)))
		}
	}
	for key, vals := range f.MatchAny {
		strs := make([]string, 0, len(vals))
		for _, v := range vals {
			strs = append(strs, fmt.Sprint(v))
		}
		must = append(must, qdrant.NewMatchKeywords(key, strs...))
	}
	return &qdrant.Filter{Must: must}
}

// payloadToMap converts Qdrant payload values to plain Go values.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		vals := kind.ListValue.GetValues()
		out := make([]any, 0, len(vals))
		for _, item := range vals {
			out = append(out, valueToAny(item))
		}
		return out
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			out[k] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}
