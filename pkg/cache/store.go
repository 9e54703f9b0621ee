package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found or is expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the expiring key-value table consulted around cacheable calls.
// Implementations must support concurrent reads with writes serialized
// against all other operations on the same instance.
//
// The current instant is passed in explicitly so freshness decisions are
// deterministic and testable without a clock stub.
type Store interface {
	// Get returns the entry for key iff it exists and now is before its
	// expiry; otherwise it returns ErrCacheMiss. An absent entry and an
	// expired one are indistinguishable to the caller.
	Get(ctx context.Context, key Key, now time.Time) (*Entry, error)

	// Set inserts or overwrites the entry for key unconditionally.
	Set(ctx context.Context, key Key, entry *Entry) error

	// Invalidate removes exactly one entry if present. Removing an absent
	// key is a no-op, not an error.
	Invalidate(ctx context.Context, key Key) error

	// InvalidateByPath removes every entry for the (method, path) pair
	// regardless of query variant.
	InvalidateByPath(ctx context.Context, method, path string) error

	// InvalidateAll clears every entry.
	InvalidateAll(ctx context.Context) error
}
