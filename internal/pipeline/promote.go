package pipeline

import (
	"context"
	"fmt"

	"aird/internal/catalog"
	"aird/internal/logging"
	"aird/internal/types"
	"aird/internal/vectorstore"
)

// Promote atomically points the production alias of a product at the
// given version's collection. The target collection must exist and hold
// at least one point; an empty collection is never promoted.
func Promote(ctx context.Context, rt *Runtime, productID int64, version int) (string, error) {
	log := logging.L(logging.CategoryVector)

	prod, err := rt.Catalog.GetProduct(productID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInputMissing, err)
	}
	if version <= 0 {
		version = prod.CurrentVersion
	}

	collection, info, err := resolveCollection(ctx, rt.Vectors, prod, version)
	if err != nil {
		return "", err
	}
	if info.PointsCount == 0 {
		return "", fmt.Errorf("%w: collection %s has no points, refusing to promote",
			types.ErrIntegrity, collection)
	}

	alias := vectorstore.AliasName(prod.WorkspaceID, prod.Name)
	if err := rt.Vectors.SetProdAlias(ctx, alias, collection); err != nil {
		return "", err
	}
	if err := rt.Catalog.SetPromotedVersion(productID, version); err != nil {
		return "", err
	}
	if err := rt.Catalog.SetArtifactRetention(productID, version, catalog.RetainForever); err != nil {
		log.Warnw("promoted version retention not updated", "product", productID, "version", version, "error", err)
	}

	log.Infow("version promoted",
		"product", prod.Name, "version", version, "alias", alias,
		"collection", collection, "points", info.PointsCount)
	return alias, nil
}

// resolveCollection finds the existing collection for (product, version),
// trying the name-based convention first and the legacy id-based one
// second.
func resolveCollection(ctx context.Context, store vectorstore.Store, prod *catalog.Product, version int) (string, *vectorstore.CollectionInfo, error) {
	candidates := vectorstore.CandidateCollectionNames(prod.WorkspaceID, prod.ID, prod.Name, version)
	for _, name := range candidates {
		info, err := store.GetCollectionInfo(ctx, name)
		if err == nil {
			return name, info, nil
		}
	}
	return "", nil, fmt.Errorf("%w: no collection found for %s v%d (tried %v)",
		types.ErrInputMissing, prod.Name, version, candidates)
}
