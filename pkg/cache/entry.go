// Package cache provides time-bounded response caching behind a pluggable
// Store interface, with an in-memory default and an optional Redis backend.
package cache

import (
	"net/http"
	"time"
)

// Entry is one cached response.
type Entry struct {
	// Data is the response body.
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// Headers are the response headers.
	Headers http.Header `json:"headers"`

	// Expires is when the entry becomes stale (store time + caller TTL).
	Expires time.Time `json:"expires"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry from a response payload, expiring ttl after now.
func NewEntry(data []byte, statusCode int, headers http.Header, ttl time.Duration, now time.Time) *Entry {
	return &Entry{
		Data:       data,
		StatusCode: statusCode,
		Headers:    headers.Clone(),
		Expires:    now.Add(ttl),
		CachedAt:   now,
	}
}

// Valid reports whether the entry is still fresh at the given instant.
// An expired entry is logically absent even if not yet physically purged.
func (e *Entry) Valid(now time.Time) bool {
	return now.Before(e.Expires)
}

// TTL returns the time remaining until expiration as of now.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
