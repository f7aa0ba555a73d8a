// Package repository holds the document store contract, its in-memory and
// SQLite implementations, and the change feed that drives live subscriptions.
package repository

import (
	"context"
	"fmt"
)

// Document is one record of a collection: a store-assigned key plus its fields.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Field returns the named top-level field.
func (d Document) Field(name string) (any, bool) {
	v, ok := d.Data[name]
	return v, ok
}

// Filter selects documents whose Field equals Value. Value must not be nil:
// stored nulls cannot be selected by equality.
type Filter struct {
	Field string
	Value any
}

// Validate fails with ErrInvalidFilter when the filter names no field or
// compares against nil.
func (f Filter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("%w: empty field", ErrInvalidFilter)
	}
	if f.Value == nil {
		return fmt.Errorf("%w: nil value for %q", ErrInvalidFilter, f.Field)
	}
	return nil
}

// Matches reports whether doc carries Field with a value equal to Value.
// A filter with a nil Value matches nothing.
func (f Filter) Matches(doc Document) bool {
	if f.Value == nil {
		return false
	}
	v, ok := doc.Field(f.Field)
	if !ok || v == nil {
		return false
	}
	return valuesEqual(v, f.Value)
}

// ChangeFunc receives the current result set of a subscription, or the error
// that prevented reading it.
type ChangeFunc func(docs []Document, err error)

// CancelFunc detaches a subscription. It is safe to call more than once.
type CancelFunc func()

// Store is a collection-oriented document store with change notification.
//
// Fetch and Subscribe with a non-nil filter require an index on the filter
// field; without one they fail with an *IndexError. A filter that does not
// pass Validate fails with ErrInvalidFilter before the index is consulted.
// Unfiltered reads return documents in insertion order.
type Store interface {
	Fetch(ctx context.Context, collection string, filter *Filter) ([]Document, error)
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Push stores data under a new unique key and returns it.
	Push(ctx context.Context, collection string, data map[string]any) (string, error)
	// Set creates or replaces the document at id.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update merges patch into the top-level fields of an existing document.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers the current result set immediately and again after
	// every write to the collection, until the returned CancelFunc is called
	// or ctx is done.
	Subscribe(ctx context.Context, collection string, filter *Filter, onChange ChangeFunc) (CancelFunc, error)
	Count(ctx context.Context, collection string) int
	Close() error
}

func valuesEqual(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if _, ok := b.(string); ok {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func checkCollection(collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCollection)
	}
	return nil
}

// cloneData deep-copies a JSON-shaped document body.
func cloneData(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]float64:
		out := make(map[string]float64, len(t))
		for k, f := range t {
			out[k] = f
		}
		return out
	default:
		return v
	}
}

// FilterDocuments keeps the documents that match f, preserving order.
func FilterDocuments(docs []Document, f Filter) []Document {
	out := make([]Document, 0, len(docs))
	for i := range docs {
		if f.Matches(docs[i]) {
			out = append(out, docs[i])
		}
	}
	return out
}
