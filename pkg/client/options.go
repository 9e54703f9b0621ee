package client

import "time"

// callOptions are the per-call settings gathered from CallOptions.
type callOptions struct {
	cacheTTL time.Duration
	headers  map[string]string
}

// CallOption customizes a single call.
type CallOption func(*callOptions)

func newCallOptions(opts []CallOption) callOptions {
	options := callOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithCacheTTL opts the call into caching for the given duration. Caching
// is GET-only; on other methods the option is ignored. A call without a TTL
// bypasses the cache entirely, neither reading nor writing it.
func WithCacheTTL(ttl time.Duration) CallOption {
	return func(o *callOptions) {
		o.cacheTTL = ttl
	}
}

// WithHeader sets a request header for this call only. It is applied when
// the request is built, before auth stamping and outbound middleware run.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}
