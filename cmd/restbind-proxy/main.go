// restbind-proxy exposes a set of declared REST endpoints over HTTP.
//
// Endpoints are declared through the ENDPOINTS environment variable as a
// comma-separated list of "name METHOD /path/{param}" entries. Incoming
// requests to /call/<name> are resolved against the declaration, executed
// through the restbind client (auth, middleware, cache, retry), and the
// upstream response is relayed back to the caller.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/restbind/restbind/pkg/auth"
	"github.com/restbind/restbind/pkg/cache"
	"github.com/restbind/restbind/pkg/client"
	"github.com/restbind/restbind/pkg/endpoint"
	"github.com/restbind/restbind/pkg/logging"
	"github.com/restbind/restbind/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// Config holds proxy configuration loaded from environment variables.
type Config struct {
	// BaseURL is the upstream API root every declared endpoint resolves against.
	BaseURL string `envconfig:"BASE_URL" required:"true"`

	// Endpoints declares the callable surface, e.g.
	// "get_user GET /users/{id}, list_posts GET /posts".
	Endpoints string `envconfig:"ENDPOINTS" required:"true"`

	Port      string `envconfig:"PORT" default:"8080"`
	UserAgent string `envconfig:"USER_AGENT" default:"restbind-proxy/0.1.0"`

	// CacheTTL enables response caching for GET calls when positive.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"0s"`

	// RedisAddr switches the cache store from in-memory to Redis when set.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// Auth scheme applied to every upstream request (none, bearer, basic, custom).
	AuthKind  string `envconfig:"AUTH_KIND" default:"none"`
	AuthKey   string `envconfig:"AUTH_KEY"`
	AuthValue string `envconfig:"AUTH_VALUE"`

	// RateLimitGuard gates upstream calls on X-RateLimit headers.
	RateLimitGuard bool `envconfig:"RATE_LIMIT_GUARD" default:"true"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// LoadConfig loads proxy configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		fallbackLogger := logging.NewLogger("restbind-proxy")
		fallbackLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	logger := logging.NewLogger("restbind-proxy")

	clientCfg := client.DefaultConfig(cfg.BaseURL)
	clientCfg.UserAgent = cfg.UserAgent

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		store, err := cache.NewRedisStore(redisClient)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Redis cache store")
		}
		clientCfg.Store = store
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis cache store")
	}

	apiClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create client")
	}

	defs, err := parseEndpoints(cfg.Endpoints)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse endpoint declarations")
	}
	for _, def := range defs {
		if err := apiClient.Register(def); err != nil {
			logger.Fatal().Err(err).Str("endpoint", def.Name()).Msg("Failed to register endpoint")
		}
		logger.Info().
			Str("endpoint", def.Name()).
			Str("method", def.Method()).
			Str("template", def.Template()).
			Msg("Registered endpoint")
	}

	scheme, err := auth.ParseScheme(cfg.AuthKind, cfg.AuthKey, cfg.AuthValue)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid auth configuration")
	}
	apiClient.SetAuth(scheme)

	if cfg.RateLimitGuard {
		tracker := ratelimit.NewTracker(ratelimit.DefaultConfig(), logging.NewLogger("ratelimit"))
		apiClient.UseRequest("ratelimit-gate", tracker.RequestMiddleware())
		apiClient.UseResponse("ratelimit-observe", tracker.ResponseMiddleware())
		logger.Info().Msg("Rate limit guard enabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/call/", callHandler(apiClient, cfg.CacheTTL))
	mux.HandleFunc("/cache", invalidateHandler(apiClient))

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("base_url", cfg.BaseURL).
		Int("endpoints", len(defs)).
		Msg("Starting restbind proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// parseEndpoints parses a comma-separated declaration list where each entry
// is "name METHOD /template".
func parseEndpoints(spec string) ([]*endpoint.Definition, error) {
	var defs []*endpoint.Definition
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Fields(entry)
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid endpoint declaration %q: want \"name METHOD /template\"", entry)
		}
		def, err := endpoint.NewDefinition(fields[0], fields[1], fields[2])
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", fields[0], err)
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no endpoint declarations found")
	}
	return defs, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports readiness. With a Redis-backed cache the store must
// be reachable; the in-memory store is always ready.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// callHandler executes the endpoint named in the path with arguments taken
// from the query string, e.g. GET /call/get_user?id=42.
func callHandler(apiClient *client.Client, cacheTTL time.Duration) http.HandlerFunc {
	logger := logging.NewLogger("restbind-proxy")

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/call/")
		if name == "" || strings.Contains(name, "/") {
			http.Error(w, "endpoint name required", http.StatusNotFound)
			return
		}

		args := make(map[string]any, len(r.URL.Query()))
		for key, values := range r.URL.Query() {
			args[key] = values[0]
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		var opts []client.CallOption
		if cacheTTL > 0 {
			opts = append(opts, client.WithCacheTTL(cacheTTL))
		}

		result, err := apiClient.Call(ctx, name, args, opts...)
		if err != nil {
			writeCallError(w, logger, name, err)
			return
		}

		if ct := result.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if result.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(result.StatusCode)
		if _, err := w.Write(result.Body); err != nil {
			logger.Warn().Err(err).Str("endpoint", name).Msg("Failed to write response")
		}
	}
}

// writeCallError relays upstream status errors with their original body and
// maps engine errors onto proxy-side statuses.
func writeCallError(w http.ResponseWriter, logger zerolog.Logger, name string, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		// The upstream answered: relay its status and body unchanged.
		w.WriteHeader(apiErr.StatusCode)
		if _, werr := w.Write(apiErr.Body); werr != nil {
			logger.Warn().Err(werr).Str("endpoint", name).Msg("Failed to write error response")
		}
		return
	}

	switch {
	case errors.Is(err, endpoint.ErrUnknownEndpoint):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, endpoint.ErrMissingParameter), errors.Is(err, endpoint.ErrTypeMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ratelimit.ErrLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		logger.Error().Err(err).Str("endpoint", name).Msg("Upstream request failed")
		http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
	}
}

// invalidateHandler clears cached responses. DELETE /cache drops everything;
// DELETE /cache?endpoint=name&<args> drops every variant of one resolved call.
func invalidateHandler(apiClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		query := r.URL.Query()
		name := query.Get("endpoint")

		if name == "" {
			if err := apiClient.InvalidateAll(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		args := make(map[string]any, len(query))
		for key, values := range query {
			if key == "endpoint" {
				continue
			}
			args[key] = values[0]
		}

		if err := apiClient.Invalidate(r.Context(), name, args); err != nil {
			if errors.Is(err, endpoint.ErrUnknownEndpoint) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
