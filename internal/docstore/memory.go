package docstore

import (
	"context"
	"sort"
	"sync"

	"onpaku/pkg/platform/sentinel"
)

// MemoryStore keeps collections in process memory. It backs unit tests and
// local development; documents are JSON-normalized on write so behavior
// matches the PostgreSQL and Redis backends.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Document)}
}

func (s *MemoryStore) Collection(name string) Collection {
	return &memoryCollection{store: s, name: name}
}

func (s *MemoryStore) Health(_ context.Context) error { return nil }

// docs returns the named collection's map, creating it if needed. Callers
// must hold the write lock.
func (s *MemoryStore) docs(name string) map[string]Document {
	col, ok := s.collections[name]
	if !ok {
		col = make(map[string]Document)
		s.collections[name] = col
	}
	return col
}

type memoryCollection struct {
	store *MemoryStore
	name  string
}

func (c *memoryCollection) Get(_ context.Context, id string) (Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if doc, ok := c.store.collections[c.name][id]; ok {
		return clone(doc)
	}
	return nil, sentinel.ErrNotFound
}

func (c *memoryCollection) Set(_ context.Context, id string, doc Document, opts SetOptions) error {
	normalized, err := Encode(doc)
	if err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.docs(c.name)
	if opts.Merge {
		if existing, ok := docs[id]; ok {
			merged := make(Document, len(existing)+len(normalized))
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range normalized {
				merged[k] = v
			}
			docs[id] = merged
			return nil
		}
	}
	docs[id] = normalized
	return nil
}

func (c *memoryCollection) Update(_ context.Context, id string, fields Document) error {
	normalized, err := Encode(fields)
	if err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.docs(c.name)
	existing, ok := docs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	for k, v := range normalized {
		existing[k] = v
	}
	return nil
}

func (c *memoryCollection) Mutate(_ context.Context, id string, fn func(Document) (Document, error)) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.docs(c.name)

	var current Document
	if existing, ok := docs[id]; ok {
		cloned, err := clone(existing)
		if err != nil {
			return err
		}
		current = cloned
	}

	out, err := fn(current)
	if err != nil {
		return err
	}
	normalized, err := Encode(out)
	if err != nil {
		return err
	}
	docs[id] = normalized
	return nil
}

func (c *memoryCollection) Query(_ context.Context, filters ...Filter) ([]Snapshot, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	var results []Snapshot
	for id, doc := range c.store.collections[c.name] {
		if !matches(doc, filters) {
			continue
		}
		cloned, err := clone(doc)
		if err != nil {
			return nil, err
		}
		results = append(results, Snapshot{ID: id, Data: cloned})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// clone deep-copies a document so callers can't mutate stored state.
func clone(doc Document) (Document, error) {
	return Encode(doc)
}
