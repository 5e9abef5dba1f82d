package cache

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryStore keeps entries in process memory. Useful for tests and for
// short-lived processes that do not need a persistent cache.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func (s *MemoryStore) Contains(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.store[key]
	return ok, nil
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.store[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(value), nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = slices.Clone(value)
	return nil
}

// Keys lists the stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := maps.Keys(s.store)
	slices.Sort(keys)
	return keys
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		store: map[string][]byte{},
	}
}
