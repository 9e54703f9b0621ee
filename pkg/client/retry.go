package client

import (
	"math/rand"
	"time"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next one. It is a pure function of (error class, attempt
// count) and holds no mutable state; per-call retry progress lives in the
// executor's attempt loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff delay.
	MaxBackoff time.Duration

	// BackoffMultiplier is the per-attempt growth factor.
	BackoffMultiplier float64

	// Jitter is the random spread applied at sleep time as a fraction of
	// the computed delay (0.2 means ±20%). Zero keeps delays exact.
	Jitter float64
}

// DefaultRetryPolicy returns the default policy: 3 attempts, 500ms initial
// backoff doubling up to 30s, no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0,
	}
}

// ShouldRetry reports whether another attempt should be made after a
// failure of the given class on the given attempt (1-based count of
// attempts already made). Client errors are never retried.
func (p RetryPolicy) ShouldRetry(class ErrorClass, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return transient(class)
}

// NextDelay returns the backoff before retry number attempt+1:
// InitialBackoff * BackoffMultiplier^attempt, capped at MaxBackoff.
// attempt is 0-based, so NextDelay(0) is the first backoff.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
		if delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// sleepDelay applies the configured jitter to a computed delay.
func (p RetryPolicy) sleepDelay(delay time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return delay
	}
	spread := 1 - p.Jitter + rand.Float64()*2*p.Jitter
	return time.Duration(float64(delay) * spread)
}
