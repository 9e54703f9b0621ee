package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for sharing cached responses
// across processes pointed at the same API. Entries are JSON-encoded; the
// in-entry Expires timestamp is the logical authority and a matching
// Redis-side TTL handles physical purging.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) (*RedisStore, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key Key, now time.Time) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if !entry.Valid(now) {
		// Redis TTL lags the logical expiry; drop the stale entry.
		_ = s.Invalidate(ctx, key)
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}

	ttl := entry.TTL(time.Now())
	if ttl <= 0 {
		// Already expired, don't cache.
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	cacheSize.WithLabelValues("redis").Add(float64(len(data)))
	return nil
}

// Invalidate implements Store.
func (s *RedisStore) Invalidate(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	cacheInvalidations.WithLabelValues("key").Inc()
	return nil
}

// InvalidateByPath implements Store. The bare prefix covers the no-query
// key; the SCAN match covers every query variant. Matching on "prefix:*"
// rather than "prefix*" keeps /users/1 from sweeping up /users/10.
func (s *RedisStore) InvalidateByPath(ctx context.Context, method, path string) error {
	prefix := Key{Method: method, Path: path}.Prefix()

	if err := s.redis.Del(ctx, prefix).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	iter := s.redis.Scan(ctx, 0, prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			cacheErrors.WithLabelValues("delete").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}

	cacheInvalidations.WithLabelValues("path").Inc()
	return nil
}

// InvalidateAll implements Store. Only keys under the restbind namespace
// are removed; the Redis database may be shared.
func (s *RedisStore) InvalidateAll(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, "restbind:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			cacheErrors.WithLabelValues("delete").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}

	cacheSize.WithLabelValues("redis").Set(0)
	cacheInvalidations.WithLabelValues("all").Inc()
	return nil
}
