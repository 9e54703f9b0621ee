// Package middleware provides the ordered request/response transform
// pipeline applied around every call.
package middleware

import (
	"fmt"
	"net/http"
)

// RequestFunc transforms an outgoing request before it is sent. It receives
// the previous transform's output and returns the request to hand to the
// next transform.
type RequestFunc func(*http.Request) (*http.Request, error)

// ResponseFunc transforms an incoming response after it is received.
type ResponseFunc func(*http.Response) (*http.Response, error)

// Error reports a failed transform. The whole call fails; no later
// transform in the chain runs.
type Error struct {
	// Name identifies the failing transform as given at registration.
	Name string

	// Direction is "request" or "response".
	Direction string

	// Err is the transform's original error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("middleware %q (%s): %v", e.Name, e.Direction, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

type requestEntry struct {
	name string
	fn   RequestFunc
}

type responseEntry struct {
	name string
	fn   ResponseFunc
}

// Chain is an append-only pipeline of named transforms. Both directions run
// in registration order. Register all transforms before issuing calls;
// UseRequest/UseResponse are not safe to interleave with in-flight traffic.
type Chain struct {
	request  []requestEntry
	response []responseEntry
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// UseRequest appends a named outbound transform.
func (c *Chain) UseRequest(name string, fn RequestFunc) {
	c.request = append(c.request, requestEntry{name: name, fn: fn})
}

// UseResponse appends a named inbound transform.
func (c *Chain) UseResponse(name string, fn ResponseFunc) {
	c.response = append(c.response, responseEntry{name: name, fn: fn})
}

// Len returns the number of registered transforms per direction.
func (c *Chain) Len() (request, response int) {
	return len(c.request), len(c.response)
}

// RunRequest folds all outbound transforms over req in registration order.
// The first failure aborts the fold and is returned as a *Error.
func (c *Chain) RunRequest(req *http.Request) (*http.Request, error) {
	for _, entry := range c.request {
		next, err := entry.fn(req)
		if err != nil {
			return nil, &Error{Name: entry.name, Direction: "request", Err: err}
		}
		if next == nil {
			return nil, &Error{Name: entry.name, Direction: "request", Err: fmt.Errorf("transform returned nil request")}
		}
		req = next
	}
	return req, nil
}

// RunResponse folds all inbound transforms over resp in registration order
// (the same order as outbound, not reversed).
func (c *Chain) RunResponse(resp *http.Response) (*http.Response, error) {
	for _, entry := range c.response {
		next, err := entry.fn(resp)
		if err != nil {
			return nil, &Error{Name: entry.name, Direction: "response", Err: err}
		}
		if next == nil {
			return nil, &Error{Name: entry.name, Direction: "response", Err: fmt.Errorf("transform returned nil response")}
		}
		resp = next
	}
	return resp, nil
}
