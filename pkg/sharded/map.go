package sharded

import "sync"

type mapShard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// Map is a concurrent string-keyed map striped over a fixed number of shards.
type Map[V any] struct {
	shards [numShards]mapShard[V]
}

// NewMap returns an empty sharded map.
func NewMap[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

func (m *Map[V]) shard(key string) *mapShard[V] {
	return &m.shards[shardIndexFor(key)]
}

// Store sets the value for a key.
func (m *Map[V]) Store(key string, value V) {
	shard := m.shard(key)
	shard.mu.Lock()
	shard.items[key] = value
	shard.mu.Unlock()
}

// Load returns the value stored for a key, if present.
func (m *Map[V]) Load(key string) (V, bool) {
	shard := m.shard(key)
	shard.mu.RLock()
	value, ok := shard.items[key]
	shard.mu.RUnlock()
	return value, ok
}

// Delete removes a key from the map.
func (m *Map[V]) Delete(key string) {
	shard := m.shard(key)
	shard.mu.Lock()
	delete(shard.items, key)
	shard.mu.Unlock()
}

// Count returns the total number of entries across all shards.
func (m *Map[V]) Count() int {
	count := 0
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.RLock()
		count += len(shard.items)
		shard.mu.RUnlock()
	}
	return count
}

// Range calls fn for every entry. Iteration stops when fn returns false.
// The map must not be mutated from within fn.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.RLock()
		for key, value := range shard.items {
			if !fn(key, value) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}
