// Package persist provides the storage backends behind the anchor and
// sequence stores. Every backend stores an ordered collection of JSON-encoded
// documents and implements the same Load/Save contract:
//
//	Load(ctx) ([]T, error)    // missing storage loads as an empty collection
//	Save(ctx, []T) error      // replaces the whole collection atomically
//
// Backends: JSONFile (one indented JSON array per file, written via
// temp-file-and-rename), SQLiteTable (one row per document in a shared
// "documents" table, modernc.org/sqlite) and Memory (tests, ephemeral runs).
package persist

import (
	"context"
	"slices"
	"sync"
)

// Collection is the Load/Save contract implemented by every backend.
type Collection[T any] interface {
	Load(ctx context.Context) ([]T, error)
	Save(ctx context.Context, items []T) error
}

// Memory keeps the collection in memory. The zero value is ready to use.
type Memory[T any] struct {
	mu    sync.Mutex
	items []T
	saves int
}

// Load returns a copy of the last saved collection.
func (m *Memory[T]) Load(_ context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.items), nil
}

// Save replaces the collection.
func (m *Memory[T]) Save(_ context.Context, items []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = slices.Clone(items)
	m.saves++

	return nil
}

// Saves reports how many times Save has been called.
func (m *Memory[T]) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saves
}
