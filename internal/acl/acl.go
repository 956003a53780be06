// Package acl decides which chunks a user may retrieve. Grants come from
// the catalog and are applied in grant order; the result is the union of
// every grant's scope, deduplicated by chunk id. A user with no grants
// sees nothing.
package acl

import (
	"strings"

	"aird/internal/catalog"
)

// ChunkMeta is the minimal point identity the filter needs, read from
// the vector payload.
type ChunkMeta struct {
	ChunkID    string
	ProductID  string
	DocumentID string
	FieldName  string
}

// HasFullAccess reports whether any grant is a full-access grant.
func HasFullAccess(grants []catalog.ACL) bool {
	for _, g := range grants {
		if g.AccessType == catalog.AccessFull {
			return true
		}
	}
	return false
}

// Allowed returns the chunks the grants permit, in first-granted order,
// deduplicated by chunk id. An empty grant list allows nothing.
func Allowed(grants []catalog.ACL, chunks []ChunkMeta) []ChunkMeta {
	if len(grants) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(chunks))
	var out []ChunkMeta

	admit := func(c ChunkMeta) {
		if !seen[c.ChunkID] {
			seen[c.ChunkID] = true
			out = append(out, c)
		}
	}

	for _, g := range grants {
		switch g.AccessType {
		case catalog.AccessFull:
			for _, c := range chunks {
				admit(c)
			}
		case catalog.AccessIndex:
			scope := scopeList(g.IndexScope)
			for _, c := range chunks {
				if containsExact(scope, c.ProductID) {
					admit(c)
				}
			}
		case catalog.AccessDocument:
			scope := scopeList(g.DocScope)
			for _, c := range chunks {
				if containsExact(scope, c.DocumentID) {
					admit(c)
				}
			}
		case catalog.AccessField:
			scope := scopeList(g.FieldScope)
			for _, c := range chunks {
				if c.FieldName != "" && fieldOverlap(scope, c.FieldName) {
					admit(c)
				}
			}
		}
	}
	return out
}

// scopeList parses a comma-separated scope string.
func scopeList(scope string) []string {
	var out []string
	for _, part := range strings.Split(scope, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsExact(scope []string, v string) bool {
	for _, s := range scope {
		if s == v {
			return true
		}
	}
	return false
}

// fieldOverlap matches field names by case-insensitive substring in
// either direction, so a grant on "answer" covers "answer_html" and a
// grant on "customer answer text" covers "answer".
func fieldOverlap(scope []string, fieldName string) bool {
	f := strings.ToLower(fieldName)
	for _, s := range scope {
		s = strings.ToLower(s)
		if strings.Contains(f, s) || strings.Contains(s, f) {
			return true
		}
	}
	return false
}
