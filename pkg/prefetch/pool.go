package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds worker pool configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	// Recommendation: stay below the client rate limit burst
	MaxConcurrency int
	// Timeout per job
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration for the booking backend
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        10 * time.Second,
	}
}

// Pool runs keyed fetches on a bounded set of workers
type Pool struct {
	config Config
}

// NewPool creates a new worker pool
func NewPool(config Config) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Pool{
		config: config,
	}
}

// Config returns the effective configuration.
func (p *Pool) Config() Config {
	return p.config
}

type result[T any] struct {
	key   string
	value T
	err   error
}

// Fetch runs fetch for every distinct key using the pool's workers.
// Returns a map of key -> value for the successful keys. When any key fails
// the partial map is returned together with an error joining every failure.
func Fetch[T any](ctx context.Context, p *Pool, keys []string, fetch func(ctx context.Context, key string) (T, error)) (map[string]T, error) {
	start := time.Now()
	keys = distinct(keys)
	values := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	// Every key yields exactly one result, so both channels never block
	queue := make(chan string, len(keys))
	for _, k := range keys {
		queue <- k
	}
	close(queue)
	results := make(chan result[T], len(keys))

	workers := min(p.config.MaxConcurrency, len(keys))
	log.Debug().
		Int("keys", len(keys)).
		Int("workers", workers).
		Msg("Starting parallel prefetch")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker(ctx, p.config.Timeout, fetch, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var errs []error
	for r := range results {
		if r.err != nil {
			log.Warn().
				Err(r.err).
				Str("key", r.key).
				Msg("Prefetch failed")
			errs = append(errs, fmt.Errorf("%s: %w", r.key, r.err))
			continue
		}
		values[r.key] = r.value
	}

	if len(errs) > 0 {
		return values, fmt.Errorf("prefetch (partial data: %d/%d keys): %w", len(values), len(keys), errors.Join(errs...))
	}

	log.Debug().
		Int("keys", len(values)).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	return values, nil
}

// worker processes keys from the queue
func worker[T any](ctx context.Context, timeout time.Duration, fetch func(ctx context.Context, key string) (T, error), queue <-chan string, results chan<- result[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for key := range queue {
		// Keys left after cancellation are reported, not fetched
		if err := ctx.Err(); err != nil {
			results <- result[T]{key: key, err: err}
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		value, err := fetch(jobCtx, key)
		cancel()

		results <- result[T]{key: key, value: value, err: err}
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}

func distinct(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
