package acl

import (
	"context"
	"fmt"

	"aird/internal/catalog"
	"aird/internal/embedding"
	"aird/internal/logging"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

// Playground answers retrieval queries against an indexed product with
// the caller's ACLs enforced ahead of the vector search.
type Playground struct {
	Catalog *catalog.Catalog
	Store   vectorstore.Store
	Engine  embedding.Engine
}

// Hit is one retrieved chunk.
type Hit struct {
	ChunkID string         `json:"chunk_id"`
	Score   float32        `json:"score"`
	Text    string         `json:"text"`
	Section string         `json:"section"`
	Payload map[string]any `json:"payload,omitempty"`
}

// QueryResult is a playground response.
type QueryResult struct {
	Hits       []Hit  `json:"hits"`
	ACLApplied bool   `json:"acl_applied"`
	Collection string `json:"collection"`
}

const scrollPage = 256

// Query embeds the query text and searches the product's versioned
// collection, restricted to the chunks the user's grants allow. version
// zero resolves to the promoted version, falling back to current.
func (p *Playground) Query(ctx context.Context, userID string, workspaceID int64, product string, version int, query string, topK uint64, scoreThreshold float32) (*QueryResult, error) {
	log := logging.L(logging.CategoryACL)

	prod, err := p.Catalog.FindProduct(workspaceID, product)
	if err != nil {
		return nil, err
	}
	if prod == nil {
		return nil, fmt.Errorf("%w: product %q not found in workspace %d", types.ErrInputMissing, product, workspaceID)
	}
	if version == 0 {
		if prod.PromotedVersion != nil {
			version = *prod.PromotedVersion
		} else {
			version = prod.CurrentVersion
		}
	}
	if topK == 0 {
		topK = 5
	}

	collection, err := p.resolveCollection(ctx, prod, version)
	if err != nil {
		return nil, err
	}

	res := &QueryResult{ACLApplied: true, Collection: collection}

	grants, err := p.Catalog.ListACLs(userID, prod.ID)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		log.Infow("query denied, user has no grants", "user", userID, "product", product)
		res.Hits = []Hit{}
		return res, nil
	}

	var filter *vectorstore.Filter
	if !HasFullAccess(grants) {
		allowed, err := p.allowedChunkIDs(ctx, collection, prod.ID, version, grants)
		if err != nil {
			return nil, err
		}
		if len(allowed) == 0 {
			log.Infow("query matched no accessible chunks", "user", userID, "product", product)
			res.Hits = []Hit{}
			return res, nil
		}
		filter = &vectorstore.Filter{MatchAny: map[string][]any{"chunk_id": allowed}}
	}

	vec, err := p.Engine.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := p.Store.Search(ctx, collection, vec, topK, scoreThreshold, filter)
	if err != nil {
		return nil, err
	}

	res.Hits = make([]Hit, 0, len(hits))
	for _, h := range hits {
		res.Hits = append(res.Hits, Hit{
			ChunkID: payloadString(h.Payload, "chunk_id"),
			Score:   h.Score,
			Text:    payloadString(h.Payload, "text"),
			Section: payloadString(h.Payload, "section"),
			Payload: h.Payload,
		})
	}
	log.Infow("playground query served",
		"user", userID, "product", product, "version", version,
		"hits", len(res.Hits), "filtered", filter != nil)
	return res, nil
}

// allowedChunkIDs scrolls the collection's payloads, restricted to the
// product and version, and runs the grant filter over them.
func (p *Playground) allowedChunkIDs(ctx context.Context, collection string, productID int64, version int, grants []catalog.ACL) ([]any, error) {
	scope := &vectorstore.Filter{Match: map[string]any{
		"product_id": fmt.Sprint(productID),
		"version":    version,
	}}

	var chunks []ChunkMeta
	var offset uint64
	for {
		pts, next, err := p.Store.Scroll(ctx, collection, scope, scrollPage, offset)
		if err != nil {
			return nil, err
		}
		for _, pt := range pts {
			chunks = append(chunks, ChunkMeta{
				ChunkID:    payloadString(pt.Payload, "chunk_id"),
				ProductID:  payloadString(pt.Payload, "product_id"),
				DocumentID: payloadString(pt.Payload, "document_id"),
				FieldName:  payloadString(pt.Payload, "field_name"),
			})
		}
		if next == 0 {
			break
		}
		offset = next
	}

	allowed := Allowed(grants, chunks)
	ids := make([]any, 0, len(allowed))
	for _, c := range allowed {
		ids = append(ids, c.ChunkID)
	}
	return ids, nil
}

func (p *Playground) resolveCollection(ctx context.Context, prod *catalog.Product, version int) (string, error) {
	for _, name := range vectorstore.CandidateCollectionNames(prod.WorkspaceID, prod.ID, prod.Name, version) {
		ok, err := p.Store.CollectionExists(ctx, name)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no collection for product %q version %d", types.ErrInputMissing, prod.Name, version)
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}
