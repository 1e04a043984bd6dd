// Package store keeps small per session product lists such as the wishlist
// and recently viewed items.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/matst80/slask-catalog/pkg/types"
)

const RecentLimit = 20

// List is an ordered set of product ids.
type List []types.ProductId

func (l List) Contains(id types.ProductId) bool {
	return slices.Contains(l, id)
}

// Store reads, writes and watches lists by key. Subscribers get the new list
// after every write for their key, the returned func unsubscribes.
type Store interface {
	Get(ctx context.Context, key string) (List, error)
	Put(ctx context.Context, key string, list List) error
	// Update replaces the list under key with fn applied to the stored list.
	// Concurrent updates of the same key never lose a write.
	Update(ctx context.Context, key string, fn func(List) List) (List, error)
	Subscribe(key string, fn func(List)) func()
}

func WishlistKey(session string) string {
	return "wishlist:" + session
}

func RecentKey(session string) string {
	return "recent:" + session
}

// Toggle adds id to the list stored under key or removes it when present.
func Toggle(ctx context.Context, s Store, key string, id types.ProductId) (List, error) {
	return s.Update(ctx, key, func(list List) List {
		if idx := slices.Index(list, id); idx >= 0 {
			return slices.Delete(slices.Clone(list), idx, idx+1)
		}
		return append(slices.Clone(list), id)
	})
}

// Push moves id to the front of the list and keeps at most limit entries.
func Push(ctx context.Context, s Store, key string, id types.ProductId, limit int) (List, error) {
	return s.Update(ctx, key, func(list List) List {
		next := make(List, 0, len(list)+1)
		next = append(next, id)
		for _, existing := range list {
			if existing != id {
				next = append(next, existing)
			}
		}
		if limit > 0 && len(next) > limit {
			next = next[:limit]
		}
		return next
	})
}

type subscriber struct {
	id int
	fn func(List)
}

// fanout routes list changes to the subscribers of their key.
type fanout struct {
	mu     sync.Mutex
	subs   map[string][]subscriber
	nextId int
}

// add registers fn for key and reports whether it is the first subscriber
// overall.
func (f *fanout) add(key string, fn func(List)) (func(), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[string][]subscriber)
	}
	first := f.nextId == 0
	f.nextId++
	id := f.nextId
	f.subs[key] = append(f.subs[key], subscriber{id: id, fn: fn})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		remaining := slices.DeleteFunc(f.subs[key], func(sub subscriber) bool {
			return sub.id == id
		})
		if len(remaining) == 0 {
			delete(f.subs, key)
			return
		}
		f.subs[key] = remaining
	}, first
}

// publish calls the subscribers of key outside the lock, each with its own
// copy of list.
func (f *fanout) publish(key string, list List) int {
	f.mu.Lock()
	subs := slices.Clone(f.subs[key])
	f.mu.Unlock()
	for _, sub := range subs {
		sub.fn(slices.Clone(list))
	}
	return len(subs)
}
