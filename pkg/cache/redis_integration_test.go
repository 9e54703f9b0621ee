//go:build integration

package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisStore_GetSet(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewRedisStore(redisClient)
	if err != nil {
		t.Fatalf("NewRedisStore() unexpected error: %v", err)
	}

	now := time.Now()
	key := Key{Method: "GET", Path: "/users/1"}

	if _, err := store.Get(ctx, key, now); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty store error = %v, want ErrCacheMiss", err)
	}

	entry := NewEntry([]byte(`{"id":1}`), http.StatusOK, http.Header{}, time.Minute, now)
	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}

	got, err := store.Get(ctx, key, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if string(got.Data) != `{"id":1}` {
		t.Errorf("Data = %q, want %q", got.Data, `{"id":1}`)
	}

	// Logical expiry holds even before Redis purges the key.
	if _, err := store.Get(ctx, key, now.Add(2*time.Minute)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after logical expiry error = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_Invalidate(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewRedisStore(redisClient)
	if err != nil {
		t.Fatalf("NewRedisStore() unexpected error: %v", err)
	}

	now := time.Now()
	key := Key{Method: "GET", Path: "/users/1"}
	entry := NewEntry([]byte("v"), http.StatusOK, http.Header{}, time.Minute, now)

	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}
	if err := store.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate() unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, key, now); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Invalidate error = %v, want ErrCacheMiss", err)
	}

	// Absent key is a no-op.
	if err := store.Invalidate(ctx, Key{Method: "GET", Path: "/absent"}); err != nil {
		t.Errorf("Invalidate() on absent key error = %v, want nil", err)
	}
}

func TestRedisStore_InvalidateByPath(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewRedisStore(redisClient)
	if err != nil {
		t.Fatalf("NewRedisStore() unexpected error: %v", err)
	}

	now := time.Now()
	newEntry := func() *Entry {
		return NewEntry([]byte("v"), http.StatusOK, http.Header{}, time.Minute, now)
	}

	bare := Key{Method: "GET", Path: "/users/1"}
	variant := Key{Method: "GET", Path: "/users/1", Query: url.Values{"page": []string{"2"}}}
	neighbor := Key{Method: "GET", Path: "/users/10"}

	for _, key := range []Key{bare, variant, neighbor} {
		if err := store.Set(ctx, key, newEntry()); err != nil {
			t.Fatalf("Set() unexpected error: %v", err)
		}
	}

	if err := store.InvalidateByPath(ctx, "GET", "/users/1"); err != nil {
		t.Fatalf("InvalidateByPath() unexpected error: %v", err)
	}

	for _, key := range []Key{bare, variant} {
		if _, err := store.Get(ctx, key, now); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get(%s) after path invalidation error = %v, want ErrCacheMiss", key.String(), err)
		}
	}
	if _, err := store.Get(ctx, neighbor, now); err != nil {
		t.Errorf("Get(neighbor) error = %v, want hit", err)
	}
}

func TestRedisStore_InvalidateAll(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewRedisStore(redisClient)
	if err != nil {
		t.Fatalf("NewRedisStore() unexpected error: %v", err)
	}

	now := time.Now()
	keys := []Key{
		{Method: "GET", Path: "/users/1"},
		{Method: "GET", Path: "/orders", Query: url.Values{"page": []string{"1"}}},
	}
	for _, key := range keys {
		entry := NewEntry([]byte("v"), http.StatusOK, http.Header{}, time.Minute, now)
		if err := store.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set() unexpected error: %v", err)
		}
	}

	if err := store.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll() unexpected error: %v", err)
	}

	for _, key := range keys {
		if _, err := store.Get(ctx, key, now); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get(%s) after InvalidateAll error = %v, want ErrCacheMiss", key.String(), err)
		}
	}
}
