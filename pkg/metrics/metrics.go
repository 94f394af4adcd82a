// Package metrics provides the Prometheus registry shared by the booking client.
// All metrics are defined in their respective packages (client, cache, ratelimit,
// wizard) to maintain modularity and avoid circular dependencies.
//
// This package documents the available metrics and renders them in the text
// exposition format for the command line front-end.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry is the default Prometheus registry used by the booking client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry collects.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteText writes every metric family whose name starts with prefix to w in
// the Prometheus text format. An empty prefix writes everything.
func WriteText(w io.Writer, g prometheus.Gatherer, prefix string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - booking_requests_total{operation, status} (Counter): Requests by operation and HTTP status
//   - booking_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - booking_errors_total{kind} (Counter): Errors by kind (network, unauthorized, validation, server)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - booking_rate_limit_blocks_total (Counter): Requests rejected during a server cooldown
//   - booking_rate_limit_wait_seconds (Histogram): Time spent waiting for the local token bucket
//   - booking_rate_limit_cooldowns_total (Counter): Cooldowns started from 429 responses
//
// Cache Metrics (pkg/cache):
//   - booking_cache_hits_total{state} (Counter): Hits by freshness (fresh, stale)
//   - booking_cache_misses_total (Counter): Reads with no usable entry
//   - booking_cache_fetches_total{result} (Counter): Fetches by result (ok, error, discarded)
//   - booking_cache_dedup_total (Counter): Reads that joined an in-flight fetch
//   - booking_cache_invalidations_total (Counter): Entries marked stale
//   - booking_cache_errors_total{operation} (Counter): Store errors (get, set, delete, scan)
//
// Wizard Metrics (pkg/wizard):
//   - booking_wizard_events_total{event, result} (Counter): Dispatched events by outcome
//   - booking_wizard_transitions_total{from, to} (Counter): Step changes
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(booking_cache_hits_total[5m])) /
//   (sum(rate(booking_cache_hits_total[5m])) + sum(rate(booking_cache_misses_total[5m])))
//
//   # Fetches saved by deduplication
//   rate(booking_cache_dedup_total[5m]) / rate(booking_cache_fetches_total[5m])
//
//   # Request Error Rate
//   rate(booking_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(booking_request_duration_seconds_bucket[5m]))
//
//   # Abandoned wizards (time step reached, never confirmed)
//   sum(booking_wizard_transitions_total{to="selecting_time"}) - sum(booking_wizard_transitions_total{to="confirmed"})
