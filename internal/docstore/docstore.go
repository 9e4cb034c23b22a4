// Package docstore abstracts the external document database as collections of
// JSON documents keyed by string ID. Services depend only on these interfaces;
// the in-memory, PostgreSQL, and Redis implementations are interchangeable.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Document is a JSON object tree as stored in a collection. Values are the
// result of a JSON roundtrip: strings, float64, bool, []any, map[string]any.
// Times are RFC3339 strings at rest.
type Document = map[string]any

// Snapshot pairs a document with its ID, as returned by queries.
type Snapshot struct {
	ID   string
	Data Document
}

// Filter is an equality constraint on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// SetOptions control Set behavior. With Merge, top-level fields of the given
// document are merged into any existing one; otherwise the document is
// replaced wholesale.
type SetOptions struct {
	Merge bool
}

// Store gives access to named collections and reports backend health.
type Store interface {
	Collection(name string) Collection
	Health(ctx context.Context) error
}

// Collection is a set of documents keyed by string ID.
type Collection interface {
	// Get returns the document at id, or sentinel.ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// Set writes the document at id, creating it if absent. With
	// SetOptions.Merge the top-level fields are merged into the existing
	// document; otherwise any existing document is replaced.
	Set(ctx context.Context, id string, doc Document, opts SetOptions) error

	// Update merges fields into an existing document. Returns
	// sentinel.ErrNotFound when no document exists at id.
	Update(ctx context.Context, id string, fields Document) error

	// Mutate atomically applies fn to the document at id and writes the
	// result back. fn receives the current document, or nil when none
	// exists; returning an error aborts without writing. Safe under
	// concurrent callers for the same id.
	Mutate(ctx context.Context, id string, fn func(Document) (Document, error)) error

	// Query returns every document matching all filters, ordered by ID.
	Query(ctx context.Context, filters ...Filter) ([]Snapshot, error)
}

// Encode converts a value into a Document via a JSON roundtrip so every
// backend stores the same shapes regardless of the caller's Go types.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode populates v from a document.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// matches reports whether a document satisfies every equality filter. Filter
// values are compared against their JSON-normalized form, so a string filter
// matches a string field regardless of backend.
func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		got, ok := doc[f.Field]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", f.Value) {
			return false
		}
	}
	return true
}
