package synctest

import (
	"context"
	"sync"

	"github.com/catalogsync/replicator/internal/catalog"
)

// MemoryFilterIndexStore is a concurrency-safe, in-process FilterIndexStore.
type MemoryFilterIndexStore struct {
	mu      sync.Mutex
	indexes map[string]*catalog.FilterIndex
}

// NewMemoryFilterIndexStore constructs an empty MemoryFilterIndexStore.
func NewMemoryFilterIndexStore() *MemoryFilterIndexStore {
	return &MemoryFilterIndexStore{indexes: make(map[string]*catalog.FilterIndex)}
}

func (s *MemoryFilterIndexStore) GetOrCreate(_ context.Context, filter *catalog.Filter) (*catalog.FilterIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[filter.ID]; ok {
		cp := *idx
		return &cp, nil
	}
	idx := &catalog.FilterIndex{FilterID: filter.ID}
	s.indexes[filter.ID] = idx
	cp := *idx
	return &cp, nil
}

func (s *MemoryFilterIndexStore) Save(_ context.Context, index *catalog.FilterIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *index
	s.indexes[index.FilterID] = &cp
	return nil
}

// Get returns the current stored index for filterID, for test assertions.
func (s *MemoryFilterIndexStore) Get(filterID string) *catalog.FilterIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[filterID]
	if !ok {
		return nil
	}
	cp := *idx
	return &cp
}
