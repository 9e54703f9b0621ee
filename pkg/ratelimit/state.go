// Package ratelimit tracks API rate limit headers and gates outgoing
// requests. It parses the X-RateLimit-Remaining and X-RateLimit-Reset
// headers many REST APIs send and blocks or throttles calls before the
// server starts rejecting them.
package ratelimit

import (
	"time"
)

// Default thresholds for gating decisions.
const (
	// DefaultBlockThreshold blocks all requests when the remaining budget
	// falls below this value. The last requests of a window are left to
	// the server so unrelated clients sharing the budget are not starved.
	DefaultBlockThreshold = 2

	// DefaultThrottleThreshold delays requests when the remaining budget
	// falls below this value.
	DefaultThrottleThreshold = 10

	// DefaultThrottleDelay is the pause applied to throttled requests.
	DefaultThrottleDelay = 1 * time.Second

	// DefaultStaleAfter is how long observed state stays authoritative.
	// Older state is ignored and requests are allowed.
	DefaultStaleAfter = 5 * time.Minute
)

// State is the most recently observed rate limit window.
type State struct {
	// Remaining is the request budget left in the current window, taken
	// from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets, taken from the
	// X-RateLimit-Reset header.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was observed.
	LastUpdate time.Time `json:"last_update"`
}

// Observed reports whether any rate limit headers have been seen yet.
func (s *State) Observed() bool {
	return !s.LastUpdate.IsZero()
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// Expired returns true once the observed window has reset.
func (s *State) Expired(now time.Time) bool {
	return !now.Before(s.ResetAt)
}

// TimeUntilReset returns the duration until the window resets, or 0 if
// the reset time has already passed.
func (s *State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
