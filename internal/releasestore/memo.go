package releasestore

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// Memo is a bounded read-through layer in front of a Backend. Records are
// immutable once written, so entries only leave the memo through eviction or
// the maintenance calls.
type Memo struct {
	Backend
	records *lru.Cache
}

// NewMemo wraps backend with an LRU holding up to size records.
func NewMemo(backend Backend, size int) (*Memo, error) {
	records, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Memo{Backend: backend, records: records}, nil
}

// Lookup serves from memory when possible and falls back to the backend.
func (m *Memo) Lookup(ctx context.Context, id string) (Record, bool, error) {
	if cached, ok := m.records.Get(id); ok {
		return cached.(Record).Clone(), true, nil
	}
	record, found, err := m.Backend.Lookup(ctx, id)
	if err != nil || !found {
		return record, found, err
	}
	m.records.Add(id, record.Clone())
	return record, true, nil
}

// Insert persists first and only then remembers the record.
func (m *Memo) Insert(ctx context.Context, record Record) error {
	if err := m.Backend.Insert(ctx, record); err != nil {
		return err
	}
	m.records.Add(record.ID, record.Clone())
	return nil
}

// Remove drops the record from both layers.
func (m *Memo) Remove(ctx context.Context, id string) (bool, error) {
	m.records.Remove(id)
	return m.Backend.Remove(ctx, id)
}

// Clear drops every record from both layers.
func (m *Memo) Clear(ctx context.Context) (int, error) {
	m.records.Purge()
	return m.Backend.Clear(ctx)
}

// Len reports how many records are held in memory.
func (m *Memo) Len() int {
	return m.records.Len()
}
