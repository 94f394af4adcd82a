// Package client provides the HTTP client for the booking backend with
// envelope decoding, bearer authentication, request gating and error
// classification.
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

	"github.com/Sternrassler/smart-booking-client/pkg/ratelimit"
	"github.com/Sternrassler/smart-booking-client/pkg/session"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Prometheus metrics for backend calls.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_requests_total",
		Help: "Total booking API requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_request_duration_seconds",
		Help:    "Booking API request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_errors_total",
		Help: "Total booking API errors by kind",
	}, []string{"kind"})
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// DefaultBaseURL is the hosted backend.
const DefaultBaseURL = "https://smart-booking-backend-production.up.railway.app"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to the booking backend.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	session    *session.Session
	limiter    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the backend, e.g. "https://api.example.com".
	BaseURL string

	// Session supplies the bearer token and is cleared on 401.
	Session *session.Session

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout applies to every request; expiry is a network failure.
	Timeout time.Duration

	// Request gating
	RateLimit float64 // requests per second, <= 0 disables the bucket
	Burst     int

	// Tracing wraps the transport with OpenTelemetry instrumentation.
	Tracing bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig(baseURL string, sess *session.Session) Config {
	return Config{
		BaseURL:   baseURL,
		Session:   sess,
		UserAgent: "smart-booking-client/0.1.0",
		Timeout:   10 * time.Second,
		RateLimit: 10,
		Burst:     5,
	}
}

// New creates a new booking API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "booking-client").Logger()

	transport := http.DefaultTransport
	if cfg.Tracing {
		transport = otelhttp.NewTransport(transport)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: base,
		session: cfg.Session,
		limiter: ratelimit.NewTracker(cfg.RateLimit, cfg.Burst, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do sends one request and decodes the envelope's data into out.
// op names the operation for logs and metrics. body, when non-nil, is sent
// as JSON. out may be nil when the caller only cares about success.
func (c *Client) Do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(op).Observe(time.Since(startTime).Seconds())
	}()

	requestID := uuid.NewString()

	// Step 1: Gate
	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(&APIError{Kind: KindNetwork, Operation: op, RequestID: requestID, Err: err}, "gated")
	}

	// Step 2: Build request
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set(RequestIDHeader, requestID)

	c.logger.Debug().
		Str("operation", op).
		Str("method", method).
		Str("path", req.URL.Path).
		Str("request_id", requestID).
		Msg("Executing booking API request")

	// Step 3: Execute
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, c.config.Timeout, err)
		}
		c.logger.Error().Err(err).Str("operation", op).Msg("HTTP request failed")
		return c.fail(&APIError{Kind: KindNetwork, Operation: op, RequestID: requestID, Err: err}, "network_error")
	}
	defer resp.Body.Close()

	c.limiter.UpdateFromResponse(resp.StatusCode, resp.Header)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.fail(&APIError{Kind: KindNetwork, Operation: op, StatusCode: resp.StatusCode, RequestID: requestID,
			Err: fmt.Errorf("read response body: %w", err)}, "network_error")
	}
	env, isEnvelope := decodeEnvelope(raw)
	status := strconv.Itoa(resp.StatusCode)

	// Step 4: Handle HTTP errors
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Kind:       classifyStatus(resp.StatusCode),
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    env.message(),
			RequestID:  requestID,
		}
		if apiErr.Kind == KindUnauthorized {
			if err := c.session.Clear(ctx, "unauthorized"); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to clear session after 401")
			}
		}
		c.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Str("request_id", requestID).
			Msg("Booking API request error")
		return c.fail(apiErr, status)
	}

	// Step 5: Unwrap envelope
	if isEnvelope && env.failed() {
		return c.fail(&APIError{
			Kind:       KindValidation,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    env.message(),
			RequestID:  requestID,
		}, "rejected")
	}
	if out != nil {
		if !isEnvelope {
			return c.fail(&APIError{Kind: KindServer, Operation: op, StatusCode: resp.StatusCode, RequestID: requestID,
				Err: fmt.Errorf("response is not a JSON envelope")}, "malformed")
		}
		if err := env.unwrap(out); err != nil {
			return c.fail(&APIError{Kind: KindServer, Operation: op, StatusCode: resp.StatusCode, RequestID: requestID, Err: err}, "malformed")
		}
	}

	requestsTotal.WithLabelValues(op, status).Inc()
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// fail records metrics for a failed call and returns it.
func (c *Client) fail(apiErr *APIError, status string) error {
	errorsTotal.WithLabelValues(string(apiErr.Kind)).Inc()
	requestsTotal.WithLabelValues(apiErr.Operation, status).Inc()
	return apiErr
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

// RateLimiter returns the request gate.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.limiter
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
