// Package graph writes candidate entities and relationships into the
// tenant-scoped property graph, resolving relationship endpoints against a
// per-job batch-local name map and the database, and linking created
// objects back to their source chunks.
package graph

import (
	"regexp"
	"strings"
)

var leadingArticle = regexp.MustCompile(`(?i)^(the|a|an)\s+`)

// BatchMap is the per-job, lowercased-trimmed mapping from entity names to
// the object ids they produced (created or merged into) during one
// extraction run. RelationshipResolver consults it before falling back to a
// database lookup.
type BatchMap struct {
	ids map[string]string
}

// NewBatchMap constructs an empty BatchMap.
func NewBatchMap() *BatchMap {
	return &BatchMap{ids: map[string]string{}}
}

// Put registers objectID under name's normalized form and, when name begins
// with a leading article, also under the article-stripped form.
func (m *BatchMap) Put(name, objectID string) {
	norm := Normalize(name)
	if norm == "" {
		return
	}
	m.ids[norm] = objectID

	stripped := Normalize(leadingArticle.ReplaceAllString(name, ""))
	if stripped != "" && stripped != norm {
		m.ids[stripped] = objectID
	}
}

// Get looks up an object id by name, trying the normalized form and then
// the article-stripped form.
func (m *BatchMap) Get(name string) (string, bool) {
	norm := Normalize(name)
	if id, ok := m.ids[norm]; ok {
		return id, true
	}
	stripped := Normalize(leadingArticle.ReplaceAllString(name, ""))
	if stripped != "" {
		if id, ok := m.ids[stripped]; ok {
			return id, true
		}
	}
	return "", false
}

// Normalize lowercases and trims a name for use as a batch-map key.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
