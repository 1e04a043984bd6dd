package store

import (
	"context"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu    sync.Mutex
	lists map[string]List
	subs  fanout
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists: make(map[string]List),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lists[key]), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, list List) error {
	s.mu.Lock()
	s.lists[key] = slices.Clone(list)
	s.mu.Unlock()
	s.subs.publish(key, list)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn func(List) List) (List, error) {
	s.mu.Lock()
	next := slices.Clone(fn(slices.Clone(s.lists[key])))
	s.lists[key] = next
	s.mu.Unlock()
	s.subs.publish(key, next)
	return slices.Clone(next), nil
}

func (s *MemoryStore) Subscribe(key string, fn func(List)) func() {
	unsubscribe, _ := s.subs.add(key, fn)
	return unsubscribe
}
