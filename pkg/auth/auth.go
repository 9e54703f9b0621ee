// Package auth provides the active authentication scheme and request
// stamping for outgoing calls.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrInvalidScheme is returned when a scheme cannot be built from its parts.
var ErrInvalidScheme = errors.New("invalid auth scheme")

// Kind identifies the shape of an authentication scheme.
type Kind string

const (
	// KindNone sends no credentials.
	KindNone Kind = "none"

	// KindBearer sends "Authorization: Bearer <token>".
	KindBearer Kind = "bearer"

	// KindBasic sends "Authorization: Basic <base64(username:password)>".
	KindBasic Kind = "basic"

	// KindCustom sends a caller-named header with a literal value.
	KindCustom Kind = "custom"
)

// Scheme is a closed tagged variant over the supported authentication
// shapes. Use the constructors; the zero value behaves like None.
type Scheme struct {
	kind     Kind
	token    string
	username string
	password string
	header   string
	value    string
}

// None returns a scheme that leaves requests untouched.
func None() Scheme {
	return Scheme{kind: KindNone}
}

// Bearer returns a bearer-token scheme.
func Bearer(token string) Scheme {
	return Scheme{kind: KindBearer, token: token}
}

// Basic returns an HTTP basic-auth scheme.
func Basic(username, password string) Scheme {
	return Scheme{kind: KindBasic, username: username, password: password}
}

// Custom returns a scheme that sets the named header to value.
func Custom(header, value string) Scheme {
	return Scheme{kind: KindCustom, header: header, value: value}
}

// Kind returns the scheme's shape tag.
func (s Scheme) Kind() Kind {
	if s.kind == "" {
		return KindNone
	}
	return s.kind
}

// ParseScheme validates a (kind, key, value) triple from a configuration
// surface and returns the corresponding scheme. Key and value carry
// kind-specific meanings: Bearer uses value as the token, Basic uses key as
// the username and value as the password, Custom uses key as the header
// name and value as the header value.
func ParseScheme(kind, key, value string) (Scheme, error) {
	switch Kind(kind) {
	case KindNone, "":
		return None(), nil
	case KindBearer:
		if value == "" {
			return Scheme{}, fmt.Errorf("%w: bearer token cannot be empty", ErrInvalidScheme)
		}
		return Bearer(value), nil
	case KindBasic:
		if key == "" {
			return Scheme{}, fmt.Errorf("%w: basic username cannot be empty", ErrInvalidScheme)
		}
		return Basic(key, value), nil
	case KindCustom:
		if key == "" {
			return Scheme{}, fmt.Errorf("%w: custom header name cannot be empty", ErrInvalidScheme)
		}
		return Custom(key, value), nil
	default:
		return Scheme{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidScheme, kind)
	}
}

// Strategy holds the single active scheme for one engine instance. Set is
// an atomic swap; Apply reads the current scheme. Safe for concurrent use.
type Strategy struct {
	mu     sync.RWMutex
	scheme Scheme
}

// NewStrategy returns a strategy starting with no credentials.
func NewStrategy() *Strategy {
	return &Strategy{scheme: None()}
}

// Set replaces the active scheme. The previous scheme is discarded whole;
// there is no merging of credential parts.
func (s *Strategy) Set(scheme Scheme) {
	s.mu.Lock()
	s.scheme = scheme
	s.mu.Unlock()
}

// Active returns the current scheme.
func (s *Strategy) Active() Scheme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheme
}

// Apply stamps the request with the active scheme's headers. It never
// performs network activity and never fails on a well-formed request.
func (s *Strategy) Apply(req *http.Request) {
	scheme := s.Active()

	switch scheme.Kind() {
	case KindBearer:
		req.Header.Set("Authorization", "Bearer "+scheme.token)
	case KindBasic:
		credentials := base64.StdEncoding.EncodeToString([]byte(scheme.username + ":" + scheme.password))
		req.Header.Set("Authorization", "Basic "+credentials)
	case KindCustom:
		req.Header.Set(scheme.header, scheme.value)
	case KindNone:
		// No credentials.
	}
}
