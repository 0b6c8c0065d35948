// Package sharded provides lock-striped concurrent collections keyed by
// normalized path strings. They back the apply stage's created-directory
// bookkeeping and the remote store's in-memory tree index, where a single
// mutex would serialize the worker pool.
package sharded

// numShards is a power of two so the shard index reduces to a bitwise AND.
const numShards = 64

// shardIndexFor hashes a key (FNV-1a) onto a shard.
func shardIndexFor(key string) int {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	var h uint64 = offset64
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= prime64
	}
	return int(h & (numShards - 1))
}
