package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Result is the successful outcome of a call.
type Result struct {
	// StatusCode is the HTTP status of the delivered response.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the raw response payload after inbound middleware ran.
	Body []byte

	// FromCache reports whether the payload was served from the cache
	// without contacting the transport.
	FromCache bool

	// Attempts is the number of transport attempts made (0 for cache hits).
	Attempts int
}

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
