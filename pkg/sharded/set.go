package sharded

import "sync"

type setShard struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// Set is a concurrent string set striped over a fixed number of shards.
type Set struct {
	shards [numShards]setShard
}

// NewSet returns an empty sharded set.
func NewSet() *Set {
	s := &Set{}
	for i := range s.shards {
		s.shards[i].items = make(map[string]struct{})
	}
	return s
}

func (s *Set) shard(key string) *setShard {
	return &s.shards[shardIndexFor(key)]
}

// Store adds a key to the set.
func (s *Set) Store(key string) {
	shard := s.shard(key)
	shard.mu.Lock()
	shard.items[key] = struct{}{}
	shard.mu.Unlock()
}

// Has checks for the presence of a key.
func (s *Set) Has(key string) bool {
	shard := s.shard(key)
	shard.mu.RLock()
	_, exists := shard.items[key]
	shard.mu.RUnlock()
	return exists
}

// LoadOrStore ensures a key is present, returning true if it already was.
// This is an atomic operation.
func (s *Set) LoadOrStore(key string) (loaded bool) {
	shard := s.shard(key)
	shard.mu.Lock()
	_, loaded = shard.items[key]
	if !loaded {
		shard.items[key] = struct{}{}
	}
	shard.mu.Unlock()
	return loaded
}

// Delete removes a key from the set.
func (s *Set) Delete(key string) {
	shard := s.shard(key)
	shard.mu.Lock()
	delete(shard.items, key)
	shard.mu.Unlock()
}

// Count returns the total number of keys across all shards.
func (s *Set) Count() int {
	count := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		count += len(shard.items)
		shard.mu.RUnlock()
	}
	return count
}

// Range calls fn for every key. Iteration stops when fn returns false.
// The set must not be mutated from within fn.
func (s *Set) Range(fn func(key string) bool) {
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		for key := range shard.items {
			if !fn(key) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}
