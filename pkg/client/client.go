// Package client provides the request executor: it turns declared endpoints
// plus call-time arguments into HTTP requests, applies auth and middleware,
// consults the cache, and retries transient failures with bounded backoff.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/restbind/restbind/pkg/auth"
	"github.com/restbind/restbind/pkg/cache"
	"github.com/restbind/restbind/pkg/endpoint"
	"github.com/restbind/restbind/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client executes calls against declared endpoints. It is safe for
// concurrent use; the cache store and the auth strategy are the only state
// shared between in-flight calls.
type Client struct {
	httpClient *http.Client
	registry   *endpoint.Registry
	strategy   *auth.Strategy
	chain      *middleware.Chain
	store      cache.Store
	retry      RetryPolicy
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration. All collaborators are injected at
// construction time so multiple clients pointed at different APIs coexist.
type Config struct {
	// BaseURL is the API root every resolved path is joined with (required).
	BaseURL string

	// UserAgent is sent with every request when non-empty.
	UserAgent string

	// HTTPClient is the transport collaborator. Defaults to a client with
	// a 30 second timeout.
	HTTPClient *http.Client

	// Store caches GET responses when a call opts in with a TTL.
	// Defaults to an in-memory store.
	Store cache.Store

	// Retry governs backoff for transient failures.
	Retry RetryPolicy
}

// DefaultConfig returns a safe default configuration for the given API root.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Store: cache.NewMemoryStore(),
		Retry: DefaultRetryPolicy(),
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", cfg.BaseURL)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialBackoff < 0 || cfg.Retry.MaxBackoff < 0 {
		return nil, fmt.Errorf("retry backoff durations must not be negative")
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Store == nil {
		cfg.Store = cache.NewMemoryStore()
	}

	logger := log.With().Str("component", "restbind-client").Logger()

	return &Client{
		httpClient: cfg.HTTPClient,
		registry:   endpoint.NewRegistry(),
		strategy:   auth.NewStrategy(),
		chain:      middleware.NewChain(),
		store:      cfg.Store,
		retry:      cfg.Retry,
		baseURL:    base,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Register declares an endpoint on this client.
func (c *Client) Register(def *endpoint.Definition) error {
	return c.registry.Register(def)
}

// MustRegister is like Register but panics on error. Intended for static
// endpoint declarations at program setup.
func (c *Client) MustRegister(def *endpoint.Definition) {
	c.registry.MustRegister(def)
}

// Endpoints returns all declared endpoints in registration order.
func (c *Client) Endpoints() []*endpoint.Definition {
	return c.registry.Endpoints()
}

// SetAuth atomically replaces the active authentication scheme.
func (c *Client) SetAuth(scheme auth.Scheme) {
	c.strategy.Set(scheme)
}

// UseRequest appends an outbound middleware transform. Register all
// middleware before issuing calls.
func (c *Client) UseRequest(name string, fn middleware.RequestFunc) {
	c.chain.UseRequest(name, fn)
}

// UseResponse appends an inbound middleware transform. Register all
// middleware before issuing calls.
func (c *Client) UseResponse(name string, fn middleware.ResponseFunc) {
	c.chain.UseResponse(name, fn)
}

// Call executes the named endpoint with the given arguments and returns the
// typed result or a classified error. Path parameters are taken from args;
// remaining arguments become query parameters (GET/DELETE) or JSON body
// fields (POST/PUT).
func (c *Client) Call(ctx context.Context, name string, args map[string]any, opts ...CallOption) (*Result, error) {
	options := newCallOptions(opts)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(name).Observe(time.Since(startTime).Seconds())
	}()

	// Resolving: no network activity happens on failure.
	resolved, err := c.registry.Resolve(name, args)
	if err != nil {
		requestsTotal.WithLabelValues(name, "resolve_error").Inc()
		return nil, err
	}

	// Preparing: build the raw request, stamp auth, run outbound middleware.
	req, err := c.buildRequest(ctx, resolved, options)
	if err != nil {
		requestsTotal.WithLabelValues(name, "prepare_error").Inc()
		return nil, err
	}

	c.strategy.Apply(req)

	req, err = c.chain.RunRequest(req)
	if err != nil {
		requestsTotal.WithLabelValues(name, "middleware_error").Inc()
		return nil, err
	}

	// CacheCheck: GET only, and only when the caller supplied a TTL.
	cacheable := resolved.Method == http.MethodGet && options.cacheTTL > 0
	key := cache.Key{Method: resolved.Method, Path: resolved.Path, Query: resolved.Query}

	if cacheable {
		entry, err := c.store.Get(ctx, key, time.Now())
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			// Cache is best-effort: degrade to a network call.
			c.logger.Warn().Err(err).Str("endpoint", name).Msg("Cache get error")
		}
		if entry != nil {
			c.logger.Debug().
				Str("endpoint", name).
				Str("cache_key", key.String()).
				Msg("Cache hit")
			requestsTotal.WithLabelValues(name, "cache_hit").Inc()
			// The stored payload already passed through inbound
			// middleware when it was delivered; a hit returns it
			// verbatim instead of transforming it a second time.
			return &Result{
				StatusCode: entry.StatusCode,
				Header:     entry.Headers.Clone(),
				Body:       entry.Data,
				FromCache:  true,
			}, nil
		}
	}

	// Sending, with retry on transient failures.
	c.logger.Debug().
		Str("endpoint", name).
		Str("method", resolved.Method).
		Str("path", resolved.Path).
		Msg("Executing request")

	resp, attempts, lastDelay, err := c.send(ctx, name, req)
	if err != nil {
		requestsTotal.WithLabelValues(name, "network_error").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues(name, strconv.Itoa(resp.StatusCode)).Inc()

	// Completing: inbound middleware sees every delivered response,
	// including 4xx/5xx bodies the caller may want to inspect.
	result, err := c.complete(name, resp, false, attempts)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, c.statusError(name, resp.StatusCode, result.Body, attempts, lastDelay)
	}

	if cacheable {
		now := time.Now()
		entry := cache.NewEntry(result.Body, result.StatusCode, result.Header, options.cacheTTL, now)
		if err := c.store.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", name).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", name).
				Str("cache_key", key.String()).
				Dur("ttl", options.cacheTTL).
				Msg("Cached response")
		}
	}

	return result, nil
}

// Invalidate removes every cached variant of the named endpoint resolved
// with args, regardless of query parameters.
func (c *Client) Invalidate(ctx context.Context, name string, args map[string]any) error {
	resolved, err := c.registry.Resolve(name, args)
	if err != nil {
		return err
	}
	return c.store.InvalidateByPath(ctx, resolved.Method, resolved.Path)
}

// InvalidateAll clears the entire cache store.
func (c *Client) InvalidateAll(ctx context.Context) error {
	return c.store.InvalidateAll(ctx)
}

// buildRequest constructs the raw HTTP request for a resolved call: the
// base URL joined with the path, encoded query, and a JSON body for
// POST/PUT calls carrying fields.
func (c *Client) buildRequest(ctx context.Context, resolved *endpoint.ResolvedCall, options callOptions) (*http.Request, error) {
	// resolved.Path is already percent-escaped. Setting RawPath alongside
	// the decoded Path stops URL.String from escaping it a second time
	// while keeping an escaped "/" in a parameter distinct from a real
	// path separator.
	escapedPath := strings.TrimSuffix(c.baseURL.EscapedPath(), "/") + resolved.Path
	decodedPath, err := url.PathUnescape(escapedPath)
	if err != nil {
		return nil, fmt.Errorf("resolve request path: %w", err)
	}

	target := *c.baseURL
	target.Path = decodedPath
	target.RawPath = escapedPath
	if resolved.Query != nil {
		target.RawQuery = resolved.Query.Encode()
	}

	var body io.Reader
	hasBody := len(resolved.Body) > 0
	if hasBody {
		payload, err := json.Marshal(resolved.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, resolved.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for key, value := range options.headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// send issues the prepared request, retrying transient failures per the
// retry policy. It returns the last response (which may be non-2xx) along
// with the attempt count and the last backoff delay used. A nil response
// means the transport never delivered one.
func (c *Client) send(ctx context.Context, name string, req *http.Request) (*http.Response, int, time.Duration, error) {
	var lastDelay time.Duration
	var lastErr error

	for attempt := 0; ; attempt++ {
		attempts := attempt + 1

		if attempt > 0 && req.GetBody != nil {
			replay, err := req.GetBody()
			if err != nil {
				return nil, attempts, lastDelay, fmt.Errorf("replay request body: %w", err)
			}
			req.Body = replay
		}

		resp, err := c.httpClient.Do(req)

		var class ErrorClass
		switch {
		case err != nil:
			class = ErrorClassNetwork
			lastErr = err
			errorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().Err(err).
				Str("endpoint", name).
				Int("attempt", attempts).
				Msg("Request failed")
		case resp.StatusCode >= 400:
			class = classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Str("endpoint", name).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Int("attempt", attempts).
				Msg("Request error")
		default:
			if attempt > 0 {
				c.logger.Info().
					Str("endpoint", name).
					Int("attempt", attempts).
					Msg("Request succeeded after retry")
			}
			return resp, attempts, lastDelay, nil
		}

		if !c.retry.ShouldRetry(class, attempts) {
			if resp != nil {
				// Terminal response: preserve the body for the caller.
				if transient(class) {
					retryExhaustedTotal.WithLabelValues(string(class)).Inc()
				}
				return resp, attempts, lastDelay, nil
			}
			retryExhaustedTotal.WithLabelValues(string(class)).Inc()
			return nil, attempts, lastDelay, &APIError{
				Endpoint:  name,
				Class:     class,
				Message:   "request failed",
				Attempts:  attempts,
				LastDelay: lastDelay,
				Err:       fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempts, lastErr),
			}
		}

		if resp != nil {
			resp.Body.Close()
		}

		delay := c.retry.NextDelay(attempt)
		sleep := c.retry.sleepDelay(delay)
		lastDelay = delay

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(sleep.Seconds())

		c.logger.Debug().
			Str("endpoint", name).
			Str("error_class", string(class)).
			Int("attempt", attempts).
			Dur("backoff", sleep).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return nil, attempts, lastDelay, &APIError{
				Endpoint:  name,
				Class:     class,
				Message:   "cancelled during retry backoff",
				Attempts:  attempts,
				LastDelay: lastDelay,
				Err:       fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err()),
			}
		case <-time.After(sleep):
		}
	}
}

// complete runs inbound middleware over a delivered response and reads the
// final body into a Result.
func (c *Client) complete(name string, resp *http.Response, fromCache bool, attempts int) (*Result, error) {
	final, err := c.chain.RunResponse(resp)
	if err != nil {
		resp.Body.Close()
		requestsTotal.WithLabelValues(name, "middleware_error").Inc()
		return nil, err
	}
	resp = final

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		FromCache:  fromCache,
		Attempts:   attempts,
	}, nil
}

// statusError builds the classified error for a delivered 4xx/5xx response.
func (c *Client) statusError(name string, statusCode int, body []byte, attempts int, lastDelay time.Duration) error {
	class := classifyStatus(statusCode)

	apiErr := &APIError{
		Endpoint:   name,
		StatusCode: statusCode,
		Class:      class,
		Message:    http.StatusText(statusCode),
		Body:       body,
		Attempts:   attempts,
		LastDelay:  lastDelay,
	}
	if transient(class) {
		apiErr.Err = fmt.Errorf("%w after %d attempts", ErrRetryExhausted, attempts)
		c.logger.Error().
			Str("endpoint", name).
			Int("status", statusCode).
			Int("attempts", attempts).
			Dur("last_delay", lastDelay).
			Msg("Retry attempts exhausted")
	}
	return apiErr
}
