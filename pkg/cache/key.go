package cache

import (
	"net/url"
	"strings"
)

// keyPathEscaper makes the path component unambiguous inside the
// colon-joined key. The escape char is escaped first so the mapping
// stays injective.
var keyPathEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key identifies one cached response. It incorporates the resolved path,
// the HTTP method, and every query parameter value so that distinct
// argument combinations never collide.
type Key struct {
	// Method is the HTTP method. Only GET responses are cached, but the
	// method stays in the key so the scheme is collision-free.
	Method string

	// Path is the resolved request path (e.g. "/users/1").
	Path string

	// Query are the request's query parameters.
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: restbind:METHOD:path:query1=val1&query2=val2
//
// The path component has ":" escaped and the query portion is
// percent-encoded (url.Values.Encode, sorted by key), so a ":" or "=" in
// a path parameter can never produce the same key as a query variant.
//
// Example:
//
//	restbind:GET:users/1:expand=profile
func (k Key) String() string {
	if len(k.Query) == 0 {
		return k.Prefix()
	}
	return k.Prefix() + ":" + k.Query.Encode()
}

// Prefix returns the key string without the query portion. Every query
// variant of the same (method, path) shares this prefix, which is what
// path-scoped invalidation matches on.
func (k Key) Prefix() string {
	parts := []string{"restbind", strings.ToUpper(k.Method)}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, keyPathEscaper.Replace(path))
	}

	return strings.Join(parts, ":")
}
