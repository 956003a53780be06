package pipeline

import (
	"context"
	"fmt"
	"time"

	"aird/internal/embedding"
	"aird/internal/logging"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

// maxPayloadText bounds the chunk text stored in a point payload. The
// full length survives in text_length.
const maxPayloadText = 50 * 1024

// upsertBatch is how many points go to the vector store per request.
const upsertBatch = 256

// perBatchEstimate is the rough wall-clock cost of one embedding batch,
// used only for the ETA log.
const perBatchEstimate = 3 * time.Second

// indexRecord pairs a chunk record with its stable point id and score.
type indexRecord struct {
	stem    string
	record  types.ChunkRecord
	pointID uint64
	score   float64
}

// IndexingStage embeds processed chunks and upserts them into the
// versioned collection, then measures vector and retrieval quality.
type IndexingStage struct{}

func (*IndexingStage) Name() string { return StageIndexing }

func (*IndexingStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StageIndexing, sc)
	ctx := context.Background()
	log := logging.L(logging.CategoryIndexing)

	stems, err := sc.View.ListProcessedStems(ctx)
	if err != nil {
		return fail(res, err)
	}
	if len(stems) == 0 {
		return skip(res, "no processed files to index")
	}

	metrics, err := sc.View.GetMetricsJSON(ctx)
	if err != nil {
		log.Warnw("metrics.json unavailable, indexing with zero scores", "error", err)
	}
	scores := buildScoreLookup(metrics)

	spec, err := resolveIndexSpec(ctx, sc)
	if err != nil {
		return fail(res, err)
	}
	engine, err := sc.Runtime.Engine(spec)
	if err != nil {
		return fail(res, err)
	}
	gen := embedding.NewGenerator(engine, true)

	collection := vectorstore.CollectionName(sc.Scope.Workspace, sc.Product.Name, sc.Scope.Version)
	if err := sc.Runtime.Vectors.EnsureCollection(ctx, collection, uint64(spec.Dimension)); err != nil {
		return fail(res, err)
	}

	var records []indexRecord
	var texts []string
	for _, stem := range stems {
		recs, err := sc.View.GetProcessedJSONL(ctx, stem)
		if err != nil {
			return fail(res, err)
		}
		for _, rec := range recs {
			if rec.Text == "" {
				continue
			}
			records = append(records, indexRecord{
				stem:    stem,
				record:  rec,
				pointID: vectorstore.PointID(sc.Product.Name, rec.ChunkID, sc.Scope.Version),
				score:   scores.lookup(rec.Source, rec.ChunkID, rec.Section),
			})
			texts = append(texts, rec.Text)
		}
	}
	if len(records) == 0 {
		return skip(res, "processed files contain no chunks")
	}

	batches := (len(texts) + gen.BatchSize() - 1) / gen.BatchSize()
	eta := time.Duration(batches) * perBatchEstimate
	log.Infow("embedding started",
		"chunks", len(texts), "batch_size", gen.BatchSize(), "batches", batches, "eta", eta)
	if eta > time.Hour {
		log.Warnw("embedding ETA exceeds one hour", "eta", eta)
	}

	genRes, err := gen.Generate(ctx, texts)
	if err != nil {
		return fail(res, fmt.Errorf("%w: embedding: %v", types.ErrExternalService, err))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var points []vectorstore.Point
	for i, rec := range records {
		vec := genRes.Vectors[i]
		if vec == nil {
			continue
		}
		points = append(points, vectorstore.Point{
			ID:      rec.pointID,
			Vector:  vec,
			Payload: pointPayload(sc, rec, collection, now),
		})
	}

	for start := 0; start < len(points); start += upsertBatch {
		end := start + upsertBatch
		if end > len(points) {
			end = len(points)
		}
		if err := sc.Runtime.Vectors.UpsertPoints(ctx, collection, points[start:end]); err != nil {
			return fail(res, err)
		}
	}

	if err := sc.Runtime.Catalog.SetRunEmbeddingModel(sc.Run.ID, spec.Model, spec.Dimension); err != nil {
		return fail(res, err)
	}

	consistency := consistencyProbe(ctx, engine, texts[0])
	vm := AnalyzeVectors(genRes.Vectors, spec.Dimension, genRes.FallbackMode, consistency)

	pb, err := sc.Runtime.Playbooks.Load(sc.PlaybookID)
	if err != nil {
		return fail(res, err)
	}
	queries, skippedShort := buildRAGQueries(records, pb.RAGEvaluation.RetrievalSettings.MaxQueries)
	rag, err := SelfRetrievalProbe(ctx, sc.Runtime.Vectors, engine, collection, queries, pb.RAGEvaluation.RetrievalSettings.TopK)
	if err != nil {
		return fail(res, err)
	}
	rag.SkippedShort = skippedShort

	if err := updateVectorFingerprint(sc, vm, rag); err != nil {
		return fail(res, err)
	}

	var trustSum float64
	for _, rec := range records {
		trustSum += rec.score
	}

	res.Metrics["collection_name"] = collection
	res.Metrics["points_indexed"] = len(points)
	res.Metrics["avg_trust_score"] = trustSum / float64(len(records))
	res.Metrics["embedding_model"] = spec.Model
	res.Metrics["embedding_dimension"] = spec.Dimension
	res.Metrics["fallback_mode"] = genRes.FallbackMode
	res.Metrics["vector_metrics"] = vm
	res.Metrics["rag_metrics"] = rag

	log.Infow("indexing complete",
		"collection", collection, "points", len(points),
		"vqs", vm.VectorQualityScore, "readiness", vm.SemanticSearchReadiness,
		"hit_rate", rag.HitRateAtK)
	return succeed(res)
}

// pointPayload builds the payload for one chunk point. Text over the
// payload bound is truncated; text_length preserves the original size.
func pointPayload(sc *StageContext, rec indexRecord, collection, createdAt string) map[string]any {
	text := rec.record.Text
	textLen := len(text)
	if textLen > maxPayloadText {
		text = text[:maxPayloadText]
	}
	tags := make([]any, 0, len(rec.record.Tags))
	for _, t := range rec.record.Tags {
		tags = append(tags, t)
	}
	return map[string]any{
		"chunk_id":      rec.record.ChunkID,
		"filename":      rec.record.Source,
		"source_file":   rec.stem,
		"document_id":   rec.record.DocumentID,
		"page":          rec.record.Page,
		"page_number":   rec.record.Page,
		"section":       rec.record.Section,
		"field_name":    rec.record.FieldName,
		"score":         rec.score,
		"text":          text,
		"text_length":   textLen,
		"product_id":    fmt.Sprint(sc.Product.ID),
		"version":       sc.Scope.Version,
		"collection_id": collection,
		"created_at":    createdAt,
		"doc_scope":     rec.record.DocumentID,
		"field_scope":   rec.record.FieldName,
		"tags":          tags,
		"token_est":     rec.record.TokenEst,
	}
}

// =============================================================================
// SCORE LOOKUP
// =============================================================================

// scoreLookup resolves a chunk's trust score with four fallback levels:
// (file, chunk_id), chunk_id, (file, section), then the file maximum.
type scoreLookup struct {
	byFileChunk   map[string]float64
	byChunk       map[string]float64
	byFileSection map[string]float64
	fileMax       map[string]float64
}

func buildScoreLookup(metrics []types.ChunkMetrics) *scoreLookup {
	l := &scoreLookup{
		byFileChunk:   map[string]float64{},
		byChunk:       map[string]float64{},
		byFileSection: map[string]float64{},
		fileMax:       map[string]float64{},
	}
	for _, m := range metrics {
		l.byFileChunk[m.File+"\x00"+m.ChunkID] = m.AITrustScore
		if _, dup := l.byChunk[m.ChunkID]; !dup {
			l.byChunk[m.ChunkID] = m.AITrustScore
		}
		if m.Section != "" {
			key := m.File + "\x00" + m.Section
			if m.AITrustScore > l.byFileSection[key] {
				l.byFileSection[key] = m.AITrustScore
			}
		}
		if m.AITrustScore > l.fileMax[m.File] {
			l.fileMax[m.File] = m.AITrustScore
		}
	}
	return l
}

func (l *scoreLookup) lookup(file, chunkID, section string) float64 {
	if s, ok := l.byFileChunk[file+"\x00"+chunkID]; ok {
		return s
	}
	if s, ok := l.byChunk[chunkID]; ok {
		return s
	}
	if s, ok := l.byFileSection[file+"\x00"+section]; ok {
		return s
	}
	return l.fileMax[file]
}

// =============================================================================
// EMBEDDING CONFIG RESOLUTION
// =============================================================================

// resolveIndexSpec decides the embedding model for this indexing run: a
// prior run of the same version wins, then the existing collection's
// dimension, then the product configuration.
func resolveIndexSpec(ctx context.Context, sc *StageContext) (types.EmbeddingSpec, error) {
	log := logging.L(logging.CategoryIndexing)

	if prior, err := sc.Runtime.Catalog.LastRunForVersion(sc.Product.ID, sc.Scope.Version); err == nil &&
		prior != nil && prior.ID != sc.Run.ID && prior.EmbeddingModel != "" {
		log.Debugw("embedding config from prior run",
			"model", prior.EmbeddingModel, "dimension", prior.EmbeddingDimension)
		return types.EmbeddingSpec{Model: prior.EmbeddingModel, Dimension: prior.EmbeddingDimension}, nil
	}

	collection := vectorstore.CollectionName(sc.Scope.Workspace, sc.Product.Name, sc.Scope.Version)
	if info, err := sc.Runtime.Vectors.GetCollectionInfo(ctx, collection); err == nil && info.VectorSize > 0 {
		spec := inferSpecFromDimension(int(info.VectorSize), sc.Product.Embedding)
		log.Debugw("embedding config from existing collection",
			"model", spec.Model, "dimension", spec.Dimension)
		return spec, nil
	}

	return productSpec(sc.Product.Embedding)
}

// ResolveQuerySpec resolves the embedding config for querying an existing
// collection. In strict mode a dimension mismatch between the product
// configuration and the collection is a conflict and no embedding is
// attempted; otherwise the collection's dimension wins with a warning.
func ResolveQuerySpec(ctx context.Context, rt *Runtime, prodEmbedding types.EmbeddingSpec, collection string, strict bool) (types.EmbeddingSpec, error) {
	info, err := rt.Vectors.GetCollectionInfo(ctx, collection)
	if err != nil {
		return types.EmbeddingSpec{}, err
	}
	collDim := int(info.VectorSize)

	spec, err := productSpec(prodEmbedding)
	if err != nil {
		return types.EmbeddingSpec{}, err
	}
	if spec.Dimension == collDim {
		return spec, nil
	}

	if strict {
		return types.EmbeddingSpec{}, &types.ConflictError{
			Collection:    collection,
			CollectionDim: collDim,
			ConfigModel:   spec.Model,
			ConfigDim:     spec.Dimension,
		}
	}
	logging.L(logging.CategoryIndexing).Warnw("embedding dimension mismatch, using collection dimension",
		"collection", collection, "collection_dim", collDim,
		"config_model", spec.Model, "config_dim", spec.Dimension)
	return inferSpecFromDimension(collDim, prodEmbedding), nil
}

// inferSpecFromDimension finds a registry model matching a stored
// dimension, keeping the configured model when it already fits.
func inferSpecFromDimension(dim int, configured types.EmbeddingSpec) types.EmbeddingSpec {
	if configured.Model != "" {
		if m, err := embedding.LookupModel(configured.Model); err == nil && m.Dimension == dim {
			return types.EmbeddingSpec{Model: configured.Model, Dimension: dim}
		}
	}
	for _, id := range []string{"minilm", "mpnet", "openai"} {
		if m, err := embedding.LookupModel(id); err == nil && m.Dimension == dim {
			return types.EmbeddingSpec{Model: id, Dimension: dim}
		}
	}
	// Unknown width; keep the configured model name but trust the
	// collection's dimension.
	return types.EmbeddingSpec{Model: configured.Model, Dimension: dim}
}

func productSpec(configured types.EmbeddingSpec) (types.EmbeddingSpec, error) {
	model := configured.Model
	if model == "" {
		model = "minilm"
	}
	return embedding.Spec(model, configured.Dimension)
}

// updateVectorFingerprint merges vector and RAG scores into the stored
// product fingerprint.
func updateVectorFingerprint(sc *StageContext, vm VectorMetrics, rag RAGMetrics) error {
	prod, err := sc.Runtime.Catalog.GetProduct(sc.Product.ID)
	if err != nil {
		return err
	}
	var fp types.Fingerprint
	if prod.Fingerprint != nil {
		fp = *prod.Fingerprint
	}
	fp.EmbeddingDimensionConsistency = clamp100(vm.DimensionConsistency * 100)
	fp.EmbeddingSuccessRate = clamp100(vm.SuccessRate * 100)
	fp.VectorQualityScore = vm.VectorQualityScore
	fp.EmbeddingModelHealth = vm.ModelHealthScore
	fp.SemanticSearchReadiness = vm.SemanticSearchReadiness
	fp.RetrievalRecallAtK = clamp100(rag.HitRateAtK * 100)
	fp.AveragePrecisionAtK = clamp100(rag.MAPAtK * 100)
	return sc.Runtime.Catalog.SetFingerprint(sc.Product.ID, fp)
}
