// Package endpoint provides the declared-endpoint registry: path templates,
// HTTP methods, and call-time resolution into concrete request shapes.
package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors returned by definition parsing and resolution.
var (
	// ErrInvalidTemplate is returned when a path template cannot be parsed.
	ErrInvalidTemplate = errors.New("invalid path template")

	// ErrInvalidMethod is returned for methods outside GET/POST/PUT/DELETE.
	ErrInvalidMethod = errors.New("invalid HTTP method")

	// ErrMissingParameter is returned when a required path parameter is
	// absent from the call arguments.
	ErrMissingParameter = errors.New("missing path parameter")

	// ErrTypeMismatch is returned when an argument value cannot be rendered
	// into its textual path or query form.
	ErrTypeMismatch = errors.New("argument type mismatch")
)

// segment is one piece of a parsed path template: either a literal or a
// named parameter.
type segment struct {
	literal string
	param   string
}

// Definition describes a single declared endpoint. It is immutable after
// construction and owned by the Registry it is registered with.
type Definition struct {
	name     string
	method   string
	template string
	segments []segment
	params   []string
}

// NewDefinition parses a path template like "/users/{id}" and returns an
// immutable endpoint definition. The method must be one of GET, POST, PUT
// or DELETE. Parameter names must be non-empty and unique within the
// template.
func NewDefinition(name, method, template string) (*Definition, error) {
	method = strings.ToUpper(method)
	switch method {
	case "GET", "POST", "PUT", "DELETE":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	if name == "" {
		return nil, fmt.Errorf("%w: endpoint name cannot be empty", ErrInvalidTemplate)
	}
	if template == "" || !strings.HasPrefix(template, "/") {
		return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidTemplate, template)
	}

	segments, params, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}

	return &Definition{
		name:     name,
		method:   method,
		template: template,
		segments: segments,
		params:   params,
	}, nil
}

// MustDefinition is like NewDefinition but panics on error. Intended for
// static endpoint declarations at program setup.
func MustDefinition(name, method, template string) *Definition {
	def, err := NewDefinition(name, method, template)
	if err != nil {
		panic(err)
	}
	return def
}

// Name returns the unique endpoint name.
func (d *Definition) Name() string { return d.name }

// Method returns the HTTP method.
func (d *Definition) Method() string { return d.method }

// Template returns the original path template.
func (d *Definition) Template() string { return d.template }

// Params returns the path parameter names in declaration order.
func (d *Definition) Params() []string {
	out := make([]string, len(d.params))
	copy(out, d.params)
	return out
}

// parseTemplate splits a template into literal and parameter segments.
// "{name}" spans are parameters; everything else is literal text.
func parseTemplate(template string) ([]segment, []string, error) {
	var segments []segment
	var params []string
	seen := make(map[string]bool)

	rest := template
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, nil, fmt.Errorf("%w: unbalanced '}' in %q", ErrInvalidTemplate, template)
			}
			segments = append(segments, segment{literal: rest})
			break
		}

		if open > 0 {
			lit := rest[:open]
			if strings.IndexByte(lit, '}') >= 0 {
				return nil, nil, fmt.Errorf("%w: unbalanced '}' in %q", ErrInvalidTemplate, template)
			}
			segments = append(segments, segment{literal: lit})
		}

		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			return nil, nil, fmt.Errorf("%w: unbalanced '{' in %q", ErrInvalidTemplate, template)
		}
		close += open

		param := rest[open+1 : close]
		if param == "" {
			return nil, nil, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidTemplate, template)
		}
		if strings.ContainsAny(param, "{/") {
			return nil, nil, fmt.Errorf("%w: malformed parameter %q in %q", ErrInvalidTemplate, param, template)
		}
		if seen[param] {
			return nil, nil, fmt.Errorf("%w: duplicate parameter %q in %q", ErrInvalidTemplate, param, template)
		}
		seen[param] = true

		segments = append(segments, segment{param: param})
		params = append(params, param)
		rest = rest[close+1:]
	}

	return segments, params, nil
}

// renderValue converts a call argument into its textual path/query form.
// Only scalar values are renderable; anything else is a type mismatch.
func renderValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("%w: cannot render %T as path or query value", ErrTypeMismatch, v)
	}
}
