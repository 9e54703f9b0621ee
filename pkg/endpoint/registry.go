package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Registry errors.
var (
	// ErrDuplicateEndpoint is returned when registering an endpoint whose
	// (template, method) pair or name is already taken.
	ErrDuplicateEndpoint = errors.New("duplicate endpoint")

	// ErrUnknownEndpoint is returned when resolving a name that was never
	// registered.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// ResolvedCall is the concrete shape of one call: the substituted path plus
// the non-path arguments classified as query values (GET/DELETE) or body
// fields (POST/PUT).
type ResolvedCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// Registry stores declared endpoints and resolves calls against them.
// Registration normally happens at program setup; Resolve is safe for
// concurrent use at any time.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Definition
	byRoute map[string]*Definition
	order   []*Definition
}

// NewRegistry returns an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Definition),
		byRoute: make(map[string]*Definition),
	}
}

// Register adds a definition to the registry. It fails if the name or the
// (template, method) pair is already registered.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("endpoint definition cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[def.name]; exists {
		return fmt.Errorf("%w: name %q already registered", ErrDuplicateEndpoint, def.name)
	}

	route := def.method + " " + def.template
	if _, exists := r.byRoute[route]; exists {
		return fmt.Errorf("%w: %s %s already registered", ErrDuplicateEndpoint, def.method, def.template)
	}

	r.byName[def.name] = def
	r.byRoute[route] = def
	r.order = append(r.order, def)
	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// endpoint declarations at program setup.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Endpoints returns all registered definitions in registration order.
func (r *Registry) Endpoints() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve substitutes path parameters from args into the named endpoint's
// template and classifies the remaining arguments: query values for
// GET/DELETE, body fields for POST/PUT. Resolution is pure and performs no
// network activity.
func (r *Registry) Resolve(name string, args map[string]any) (*ResolvedCall, error) {
	r.mu.RLock()
	def, exists := r.byName[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}

	var path strings.Builder
	used := make(map[string]bool, len(def.params))

	for _, seg := range def.segments {
		if seg.param == "" {
			path.WriteString(seg.literal)
			continue
		}

		value, ok := args[seg.param]
		if !ok {
			return nil, fmt.Errorf("%w: %q required by %s %s", ErrMissingParameter, seg.param, def.method, def.template)
		}

		rendered, err := renderValue(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", seg.param, err)
		}

		path.WriteString(url.PathEscape(rendered))
		used[seg.param] = true
	}

	resolved := &ResolvedCall{
		Method: def.method,
		Path:   path.String(),
	}

	switch def.method {
	case "GET", "DELETE":
		query := url.Values{}
		for key, value := range args {
			if used[key] {
				continue
			}
			rendered, err := renderValue(value)
			if err != nil {
				return nil, fmt.Errorf("query parameter %q: %w", key, err)
			}
			query.Set(key, rendered)
		}
		if len(query) > 0 {
			resolved.Query = query
		}
	case "POST", "PUT":
		body := make(map[string]any)
		for key, value := range args {
			if used[key] {
				continue
			}
			body[key] = value
		}
		if len(body) > 0 {
			resolved.Body = body
		}
	}

	return resolved, nil
}
