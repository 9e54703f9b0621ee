// Package batch runs many calls against one declared endpoint in parallel
// using a bounded worker pool.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/restbind/restbind/pkg/client"
	"github.com/rs/zerolog/log"
)

// Caller executes a declared endpoint. *client.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, name string, args map[string]any, opts ...client.CallOption) (*client.Result, error)
}

// Config holds runner configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel calls.
	MaxConcurrency int

	// Timeout bounds each individual call.
	Timeout time.Duration
}

// DefaultConfig returns safe runner defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// Item is the outcome of one call in a batch, index-aligned with the
// argument set that produced it.
type Item struct {
	Index  int
	Args   map[string]any
	Result *client.Result
	Err    error
}

// Runner executes batches of calls through a shared client.
type Runner struct {
	caller Caller
	config Config
}

// NewRunner creates a batch runner.
func NewRunner(caller Caller, config Config) *Runner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Runner{
		caller: caller,
		config: config,
	}
}

// Run executes the named endpoint once per argument set and returns one
// item per set, in input order. Individual failures are recorded on their
// item; only context cancellation aborts the batch early.
func (r *Runner) Run(ctx context.Context, endpoint string, argSets []map[string]any, opts ...client.CallOption) ([]Item, error) {
	start := time.Now()

	items := make([]Item, len(argSets))
	for i, args := range argSets {
		items[i] = Item{Index: i, Args: args}
	}
	if len(argSets) == 0 {
		return items, nil
	}

	log.Debug().
		Str("endpoint", endpoint).
		Int("calls", len(argSets)).
		Int("workers", r.config.MaxConcurrency).
		Msg("Starting batch")

	queue := make(chan int)
	var wg sync.WaitGroup

	workers := r.config.MaxConcurrency
	if workers > len(argSets) {
		workers = len(argSets)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
				result, err := r.caller.Call(callCtx, endpoint, items[i].Args, opts...)
				cancel()

				// Each worker owns the items it is handed, so no lock
				// is needed around the write.
				items[i].Result = result
				items[i].Err = err

				if err != nil {
					log.Warn().Err(err).
						Str("endpoint", endpoint).
						Int("index", i).
						Msg("Batch call failed")
				}
			}
		}()
	}

	feed := func() error {
		defer close(queue)
		for i := range argSets {
			select {
			case queue <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	err := feed()
	wg.Wait()

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	log.Debug().
		Str("endpoint", endpoint).
		Int("calls", len(argSets)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return items, err
}
