package cache

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const defaultShardCount = 16

// MemoryStore is the default in-process Store: a sharded map guarded by
// per-shard RWMutexes so concurrent reads never contend with each other.
// Expired entries are deleted lazily on read.
type MemoryStore struct {
	shards    []*memoryShard
	numShards int
}

type memoryShard struct {
	mu    sync.RWMutex
	store map[string]*Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	shards := make([]*memoryShard, defaultShardCount)
	for i := range shards {
		shards[i] = &memoryShard{store: make(map[string]*Entry)}
	}
	return &MemoryStore{shards: shards, numShards: defaultShardCount}
}

func (s *MemoryStore) getShard(key string) *memoryShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return s.shards[hash.Sum32()%uint32(s.numShards)]
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key Key, now time.Time) (*Entry, error) {
	keyStr := key.String()
	shard := s.getShard(keyStr)

	shard.mu.RLock()
	entry, exists := shard.store[keyStr]
	shard.mu.RUnlock()

	if !exists {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	if !entry.Valid(now) {
		shard.mu.Lock()
		// Re-check under the write lock; a newer entry may have landed.
		if current, ok := shard.store[keyStr]; ok && !current.Valid(now) {
			delete(shard.store, keyStr)
			cacheSize.WithLabelValues("memory").Sub(float64(len(current.Data)))
		}
		shard.mu.Unlock()
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues("memory").Inc()
	return entry, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}

	keyStr := key.String()
	shard := s.getShard(keyStr)

	shard.mu.Lock()
	if previous, ok := shard.store[keyStr]; ok {
		cacheSize.WithLabelValues("memory").Sub(float64(len(previous.Data)))
	}
	shard.store[keyStr] = entry
	shard.mu.Unlock()

	cacheSize.WithLabelValues("memory").Add(float64(len(entry.Data)))
	return nil
}

// Invalidate implements Store.
func (s *MemoryStore) Invalidate(_ context.Context, key Key) error {
	keyStr := key.String()
	shard := s.getShard(keyStr)

	shard.mu.Lock()
	if entry, ok := shard.store[keyStr]; ok {
		delete(shard.store, keyStr)
		cacheSize.WithLabelValues("memory").Sub(float64(len(entry.Data)))
	}
	shard.mu.Unlock()

	cacheInvalidations.WithLabelValues("key").Inc()
	return nil
}

// InvalidateByPath implements Store. Keys for the same (method, path) are
// either the bare prefix (no query) or prefix + ":..." (query variants).
func (s *MemoryStore) InvalidateByPath(_ context.Context, method, path string) error {
	prefix := Key{Method: method, Path: path}.Prefix()
	variantPrefix := prefix + ":"

	for _, shard := range s.shards {
		shard.mu.Lock()
		for keyStr, entry := range shard.store {
			if keyStr == prefix || strings.HasPrefix(keyStr, variantPrefix) {
				delete(shard.store, keyStr)
				cacheSize.WithLabelValues("memory").Sub(float64(len(entry.Data)))
			}
		}
		shard.mu.Unlock()
	}

	cacheInvalidations.WithLabelValues("path").Inc()
	return nil
}

// InvalidateAll implements Store.
func (s *MemoryStore) InvalidateAll(_ context.Context) error {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*Entry)
		shard.mu.Unlock()
	}

	cacheSize.WithLabelValues("memory").Set(0)
	cacheInvalidations.WithLabelValues("all").Inc()
	return nil
}
