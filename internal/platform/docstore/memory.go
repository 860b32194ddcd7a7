package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Memory is an in-process Store used by tests and the admin mock mode.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Fields
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Fields)}
}

// Seed writes a document, replacing any existing one.
func (m *Memory) Seed(path string, fields Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[strings.Trim(path, "/")] = fields.Clone()
}

func (m *Memory) Get(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	path = strings.Trim(path, "/")
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.docs[path]
	if !ok {
		return Document{}, NotFoundError("docstore.get", path)
	}
	_, id := splitPath(path)
	return Document{ID: id, Path: path, Fields: fields.Clone()}, nil
}

func (m *Memory) Create(ctx context.Context, collection, id string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	collection = strings.Trim(collection, "/")
	if id == "" {
		id = ulid.Make().String()
	}
	path := Join(collection, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[path]; exists {
		return "", ConflictError("docstore.create", path)
	}
	m.docs[path] = fields.Clone()
	return id, nil
}

func (m *Memory) Patch(ctx context.Context, path string, updates []Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = strings.Trim(path, "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.docs[path]
	if !ok {
		return NotFoundError("docstore.patch", path)
	}
	next := fields.Clone()
	for _, update := range updates {
		next.Set(update.Path, update.Value.clone())
	}
	m.docs[path] = next
	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	collection := strings.Trim(q.Collection, "/")

	m.mu.RLock()
	docs := make([]Document, 0)
	for path, fields := range m.docs {
		parent, id := splitPath(path)
		if parent != collection || !matches(fields, q.Where) {
			continue
		}
		docs = append(docs, Document{ID: id, Path: path, Fields: fields.Clone()})
	}
	m.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			a, _ := docs[i].Fields.Lookup(q.OrderBy)
			b, _ := docs[j].Fields.Lookup(q.OrderBy)
			if c := compare(a, b); c != 0 {
				if q.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func matches(fields Fields, filters []Filter) bool {
	for _, filter := range filters {
		value, ok := fields.Lookup(filter.Field)
		if !ok || !equal(value, filter.Value) {
			return false
		}
	}
	return true
}
