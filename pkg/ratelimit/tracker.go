package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrLimited is returned when a request is blocked because the remaining
// rate limit budget is exhausted.
var ErrLimited = errors.New("rate limit budget exhausted")

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restbind_ratelimit_remaining",
		Help: "Remaining request budget in the current rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restbind_ratelimit_blocks_total",
		Help: "Total number of requests blocked because the budget was exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restbind_ratelimit_throttles_total",
		Help: "Total number of requests delayed because the budget ran low",
	})
)

// Config holds tracker thresholds.
type Config struct {
	// BlockThreshold blocks requests when Remaining falls below it.
	BlockThreshold int

	// ThrottleThreshold delays requests when Remaining falls below it.
	ThrottleThreshold int

	// ThrottleDelay is the pause applied to throttled requests.
	ThrottleDelay time.Duration

	// StaleAfter bounds how long observed state is trusted.
	StaleAfter time.Duration
}

// DefaultConfig returns the default tracker thresholds.
func DefaultConfig() Config {
	return Config{
		BlockThreshold:    DefaultBlockThreshold,
		ThrottleThreshold: DefaultThrottleThreshold,
		ThrottleDelay:     DefaultThrottleDelay,
		StaleAfter:        DefaultStaleAfter,
	}
}

// Tracker observes rate limit headers and gates requests. It is safe for
// concurrent use; state is the latest window seen by any in-flight call.
type Tracker struct {
	mu     sync.RWMutex
	state  State
	config Config
	logger zerolog.Logger
}

// NewTracker creates a tracker with the given thresholds.
func NewTracker(config Config, logger zerolog.Logger) *Tracker {
	if config.BlockThreshold <= 0 {
		config.BlockThreshold = DefaultBlockThreshold
	}
	if config.ThrottleThreshold <= 0 {
		config.ThrottleThreshold = DefaultThrottleThreshold
	}
	if config.ThrottleDelay <= 0 {
		config.ThrottleDelay = DefaultThrottleDelay
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultStaleAfter
	}
	return &Tracker{
		config: config,
		logger: logger,
	}
}

// State returns a snapshot of the last observed window.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// UpdateFromHeaders records the rate limit window carried by a response.
// Responses without an X-RateLimit-Remaining header leave the state
// untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get("X-RateLimit-Remaining")
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
	}

	resetStr := headers.Get("X-RateLimit-Reset")
	if resetStr == "" {
		return fmt.Errorf("X-RateLimit-Reset header missing")
	}

	resetValue, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Reset header: %w", err)
	}

	now := time.Now()

	// The reset header is either an absolute Unix timestamp (GitHub
	// style) or seconds until the window resets (delta style). Values
	// below one year's worth of seconds cannot be a current timestamp.
	var resetAt time.Time
	if resetValue > 365*24*3600 {
		resetAt = time.Unix(resetValue, 0)
	} else {
		resetAt = now.Add(time.Duration(resetValue) * time.Second)
	}

	state := State{
		Remaining:  remain,
		ResetAt:    resetAt,
		LastUpdate: now,
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	rateLimitRemaining.Set(float64(remain))

	switch {
	case remain < t.config.BlockThreshold:
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", resetAt).
			Msg("Rate limit budget exhausted, requests will be blocked")
	case remain < t.config.ThrottleThreshold:
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", resetAt).
			Msg("Rate limit budget low, requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", resetAt).
			Msg("Rate limit state updated")
	}

	return nil
}

// Allow decides whether a request may proceed. Blocked requests return
// ErrLimited with the time until the window resets; throttled requests are
// delayed before returning. Unobserved, stale, or expired state allows the
// request through.
func (t *Tracker) Allow(ctx context.Context) error {
	state := t.State()
	now := time.Now()

	if !state.Observed() || state.IsStale(t.config.StaleAfter, now) || state.Expired(now) {
		return nil
	}

	if state.Remaining < t.config.BlockThreshold {
		wait := state.TimeUntilReset(now)
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait", wait).
			Msg("Blocking request, rate limit budget exhausted")
		rateLimitBlocksTotal.Inc()
		return fmt.Errorf("%w: window resets in %s", ErrLimited, wait.Round(time.Second))
	}

	if state.Remaining < t.config.ThrottleThreshold {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Dur("delay", t.config.ThrottleDelay).
			Msg("Throttling request, rate limit budget low")
		rateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.config.ThrottleDelay):
		}
	}

	return nil
}
