package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps documents in a map guarded by a RWMutex.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func memoryKey(repository, ref string) string {
	return repository + "\x00" + ref
}

func (m *MemoryStore) Load(_ context.Context, repository, ref string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[memoryKey(repository, ref)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[memoryKey(doc.Repository, doc.Ref)] = doc.Clone()
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, repository, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(repository, ref)
	if _, ok := m.docs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	delete(m.docs, key)
	return nil
}

func (m *MemoryStore) List(_ context.Context, repository string, limit int) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		if doc.Repository == repository {
			docs = append(docs, doc.Clone())
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
