package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request gating.
var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_rate_limit_blocks_total",
		Help: "Total number of requests rejected during a server-imposed cooldown",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the local token bucket",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_rate_limit_cooldowns_total",
		Help: "Total number of cooldowns started from throttling responses",
	})
)

// ErrCoolingDown is returned while the backend has asked the client to back off.
var ErrCoolingDown = errors.New("backend requested cooldown")

// Tracker gates requests and learns cooldowns from responses.
type Tracker struct {
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
	now   func() time.Time
}

// NewTracker creates a tracker allowing rps requests per second with the given
// burst. A non-positive rps disables the local bucket.
func NewTracker(rps float64, burst int, logger zerolog.Logger) *Tracker {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Tracker{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		now:     time.Now,
	}
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until a request may be sent. It fails fast with ErrCoolingDown
// during a cooldown rather than sleeping through it; the caller decides
// whether to try again.
func (t *Tracker) Wait(ctx context.Context) error {
	state := t.State()
	if now := t.now(); state.CoolingDown(now) {
		rateLimitBlocksTotal.Inc()
		t.logger.Warn().
			Dur("remaining", state.Remaining(now)).
			Msg("Request blocked by backend cooldown")
		return fmt.Errorf("%w: retry in %s", ErrCoolingDown, state.Remaining(now).Round(time.Second))
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// UpdateFromResponse records a response. 429 and 503 start a cooldown taken
// from Retry-After; any other status leaves an active cooldown untouched.
func (t *Tracker) UpdateFromResponse(status int, headers http.Header) {
	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		t.mu.Lock()
		t.state.LastStatus = status
		t.mu.Unlock()
		return
	}

	now := t.now()
	wait, ok := parseRetryAfter(headers.Get("Retry-After"), now)
	if !ok {
		if status == http.StatusServiceUnavailable {
			// 503 without a hint is an outage, not throttling.
			return
		}
		wait = DefaultCooldown
	}
	if wait > MaxCooldown {
		wait = MaxCooldown
	}

	t.mu.Lock()
	t.state = State{
		CooldownUntil: now.Add(wait),
		LastStatus:    status,
		LastUpdate:    now,
	}
	t.mu.Unlock()

	rateLimitCooldownsTotal.Inc()
	t.logger.Warn().
		Int("status", status).
		Dur("cooldown", wait).
		Msg("Backend throttled requests - cooling down")
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
