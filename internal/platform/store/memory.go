package store

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	kind string
	id   string
}

// Memory is a sync.RWMutex-guarded, in-process Store suitable for tests and
// for running the platform standalone without an external engine.
type Memory struct {
	mu   sync.RWMutex
	docs map[memoryKey]Document
	now  func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[memoryKey]Document),
		now:  time.Now,
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, kind, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[memoryKey{kind: kind, id: id}]
	if !ok {
		return Document{}, &NotFoundError{Kind: kind, ID: id}
	}

	return doc, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, kind string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document

	for k, doc := range m.docs {
		if k.kind == kind {
			out = append(out, doc)
		}
	}

	return out, nil
}

// Put implements Store. It assigns Version 1 on first insert and increments
// the stored Version on every overwrite, ignoring whatever Version the
// caller supplied.
func (m *Memory) Put(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{kind: doc.Kind, id: doc.ID}

	if existing, ok := m.docs[key]; ok {
		doc.Version = existing.Version + 1
	} else {
		doc.Version = 1
	}

	doc.UpdatedAt = m.now()
	m.docs[key] = doc

	return nil
}

// Delete implements Store. Deleting a document that does not exist is a no-op.
func (m *Memory) Delete(_ context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, memoryKey{kind: kind, id: id})

	return nil
}

// CompareAndDelete implements Store, atomically deleting the document only
// if its current Version equals expectedVersion. This is the primitive the
// refresh-token rotation depends on to make "verify, then consume" atomic.
func (m *Memory) CompareAndDelete(_ context.Context, kind, id string, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{kind: kind, id: id}

	doc, ok := m.docs[key]
	if !ok {
		return &NotFoundError{Kind: kind, ID: id}
	}

	if doc.Version != expectedVersion {
		return &VersionConflictError{Kind: kind, ID: id, ExpectedVersion: expectedVersion, ActualVersion: doc.Version}
	}

	delete(m.docs, key)

	return nil
}
