package ratelimit

import (
	"net/http"

	"github.com/restbind/restbind/pkg/middleware"
)

// RequestMiddleware returns an outbound transform that gates requests on
// the tracked budget. Register it on a client with UseRequest.
func (t *Tracker) RequestMiddleware() middleware.RequestFunc {
	return func(req *http.Request) (*http.Request, error) {
		if err := t.Allow(req.Context()); err != nil {
			return nil, err
		}
		return req, nil
	}
}

// ResponseMiddleware returns an inbound transform that records the rate
// limit headers of every delivered response. Register it on a client with
// UseResponse.
func (t *Tracker) ResponseMiddleware() middleware.ResponseFunc {
	return func(resp *http.Response) (*http.Response, error) {
		if err := t.UpdateFromHeaders(resp.Header); err != nil {
			// A malformed header must not fail the call that carried it.
			t.logger.Warn().Err(err).Msg("Failed to parse rate limit headers")
		}
		return resp, nil
	}
}
