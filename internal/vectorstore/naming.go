// Package vectorstore manages versioned Qdrant collections for product
// chunk vectors: collection and alias naming, point identity, upserts,
// filtered search, and the atomic alias swap used at promotion.
package vectorstore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var collectionUnsafe = regexp.MustCompile(`[^a-z0-9_]+`)
var underscoreRun = regexp.MustCompile(`_{2,}`)

// SanitizeCollectionName lowercases a product name and folds anything
// outside [a-z0-9_] into single underscores. Idempotent.
func SanitizeCollectionName(name string) string {
	s := strings.ToLower(name)
	s = collectionUnsafe.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "product"
	}
	return s
}

// CollectionName builds the versioned collection name for a product.
func CollectionName(workspaceID int64, product string, version int) string {
	return fmt.Sprintf("ws_%d__%s__v_%d", workspaceID, SanitizeCollectionName(product), version)
}

// AliasName builds the stable production alias for a product. Consumers
// query the alias; promotions repoint it.
func AliasName(workspaceID int64, product string) string {
	return fmt.Sprintf("prod_ws_%d__%s", workspaceID, SanitizeCollectionName(product))
}

// CandidateCollectionNames lists names a product's collection may carry,
// newest convention first. Collections created before product renames
// were indexed under the numeric product id.
func CandidateCollectionNames(workspaceID, productID int64, product string, version int) []string {
	return []string{
		CollectionName(workspaceID, product, version),
		fmt.Sprintf("ws_%d__p_%d__v_%d", workspaceID, productID, version),
	}
}

// PointID derives the stable numeric point id for a chunk: the first 15
// hex digits of md5("{product}_{chunk_id}_{version}"). 15 digits keep
// the value inside 60 bits, safely below any unsigned 64-bit boundary.
func PointID(product, chunkID string, version int) uint64 {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%d", product, chunkID, version)))
	hexDigits := hex.EncodeToString(sum[:])[:15]
	id, err := strconv.ParseUint(hexDigits, 16, 64)
	if err != nil {
		// 15 hex digits always parse; keep the compiler honest.
		panic(err)
	}
	return id
}
