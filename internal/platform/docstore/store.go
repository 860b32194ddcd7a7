// Package docstore is the narrow document-store contract the order engine relies
// on: single document reads, create-with-id that fails when the document exists,
// patch that fails when it does not, and simple equality queries. There are no
// multi-document transactions.
package docstore

import (
	"context"
	"strings"
)

// Document is a decoded document. Path is the full slash separated path.
type Document struct {
	ID     string
	Path   string
	Fields Fields
}

// Update sets one dot separated field path.
type Update struct {
	Path  string
	Value Value
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality predicate.
type Filter struct {
	Field string
	Value Value
}

// Query selects documents of a single collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

// Store is implemented by FirestoreStore and Memory.
type Store interface {
	// Get returns a NotFound error when the document does not exist.
	Get(ctx context.Context, path string) (Document, error)
	// Create stores fields under collection. An empty id lets the store assign
	// one; otherwise a Conflict error is returned when the id is taken.
	Create(ctx context.Context, collection, id string, fields Fields) (string, error)
	// Patch applies the updates to an existing document (NotFound otherwise).
	Patch(ctx context.Context, path string, updates []Update) error
	Query(ctx context.Context, q Query) ([]Document, error)
}

// Join builds a document or collection path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidID reports whether id can name a single document. Ids that would
// address another path level, or that Firestore reserves, are rejected.
func ValidID(id string) bool {
	switch {
	case id == "", id == ".", id == "..":
		return false
	case strings.Contains(id, "/"):
		return false
	case len(id) > 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"):
		return false
	}
	return true
}

func splitPath(path string) (collection, id string) {
	path = strings.Trim(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
