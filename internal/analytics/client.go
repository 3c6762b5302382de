package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundboard/internal/metrics"
	"github.com/sawpanic/fundboard/internal/net/breaker"
	"github.com/sawpanic/fundboard/internal/net/ratelimit"
)

const (
	// DefaultBaseURL is used when no deployment configuration is supplied
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds every request issued by the client
	DefaultTimeout = 5000 * time.Millisecond

	maxBodyBytes = 16 << 20
)

// Endpoint is one of the fixed analytics API paths
type Endpoint string

const (
	EndpointPnl           Endpoint = "/pnl"
	EndpointSweepSummary  Endpoint = "/sweep_summary"
	EndpointSeasonalStats Endpoint = "/seasonal_stats"
	EndpointSpreadMetrics Endpoint = "/spread_metrics"
	EndpointHealth        Endpoint = "/health"
)

// Valid reports whether e is a known endpoint
func (e Endpoint) Valid() bool {
	switch e {
	case EndpointPnl, EndpointSweepSummary, EndpointSeasonalStats, EndpointSpreadMetrics, EndpointHealth:
		return true
	}
	return false
}

// ErrUnknownEndpoint is returned without any network call for paths outside the fixed set
var ErrUnknownEndpoint = errors.New("unknown analytics endpoint")

// Source is the narrow interface panels fetch through
type Source interface {
	Fetch(ctx context.Context, endpoint Endpoint, query map[string]string) (json.RawMessage, error)
}

// Client issues GET requests against the analytics API. It performs no
// caching, no retries and no schema validation.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	limiter    *ratelimit.Limiter
	breaker    *breaker.Breaker
	metrics    *metrics.Registry
}

// Option configures a Client
type Option func(*Client)

// WithTimeout overrides the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimiter throttles requests per endpoint
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBreaker routes requests through a circuit breaker
func WithBreaker(b *breaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithMetrics records fetch outcomes and latency
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the analytics API rooted at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("analytics base url must be http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("analytics base url has no host: %q", baseURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 8

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Transport: transport},
		timeout:    DefaultTimeout,
		userAgent:  "fundboard/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resolved analytics API root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// CircuitDisabled is the GuardStatus circuit value when no breaker is installed
const CircuitDisabled = "disabled"

// GuardStatus reports the optional request guards of a Client
type GuardStatus struct {
	Circuit string             `json:"circuit"`
	Tokens  map[string]float64 `json:"rate_limit_tokens,omitempty"`
}

// Guards returns the breaker state and the rate-limit tokens left per data
// endpoint. Tokens is nil when no limiter is installed.
func (c *Client) Guards() GuardStatus {
	gs := GuardStatus{Circuit: CircuitDisabled}
	if c.breaker != nil {
		gs.Circuit = c.breaker.State()
	}
	if c.limiter != nil {
		gs.Tokens = make(map[string]float64, 4)
		for _, ep := range []Endpoint{EndpointPnl, EndpointSweepSummary, EndpointSeasonalStats, EndpointSpreadMetrics} {
			gs.Tokens[string(ep)] = c.limiter.Tokens(string(ep))
		}
	}
	return gs
}

// Fetch issues one GET for endpoint with the non-empty query values and
// returns the raw JSON body on a 2xx response.
func (c *Client) Fetch(ctx context.Context, endpoint Endpoint, query map[string]string) (json.RawMessage, error) {
	if !endpoint.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}

	start := time.Now()
	body, status, err := c.fetch(ctx, endpoint, query)
	duration := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	c.metrics.RecordFetch(string(endpoint), outcome, duration)

	log.Debug().
		Str("endpoint", string(endpoint)).
		Int("status", status).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("Analytics fetch")

	return body, err
}

func (c *Client) fetch(ctx context.Context, ep Endpoint, query map[string]string) (json.RawMessage, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, string(ep)); err != nil {
			return nil, 0, networkError(ep, fmt.Sprintf("rate limit wait failed: %v", err), err)
		}
	}

	target := c.buildURL(ep, query)

	var (
		status int
		body   []byte
	)
	call := func() (any, error) {
		var err error
		status, body, err = c.roundTrip(ctx, ep, target)
		if err != nil {
			return nil, err
		}
		if status >= 500 {
			return nil, fmt.Errorf("server error %d", status)
		}
		return nil, nil
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(call)
		if breaker.IsOpen(err) {
			return nil, 0, networkError(ep, "analytics service unavailable (circuit open)", err)
		}
	} else {
		_, err = call()
	}

	// Transport failures are already typed; server errors fall through to the status check.
	var ce *ClientError
	if errors.As(err, &ce) {
		return nil, status, ce
	}

	if status < 200 || status > 299 {
		return nil, status, httpError(ep, status, body)
	}
	if !json.Valid(body) {
		return nil, status, decodeError(ep, errors.New("body is not valid JSON"))
	}
	return json.RawMessage(body), status, nil
}

func (c *Client) buildURL(ep Endpoint, query map[string]string) string {
	u := c.baseURL.JoinPath(string(ep))
	values := url.Values{}
	for k, v := range query {
		if v != "" {
			values.Set(k, v)
		}
	}
	u.RawQuery = values.Encode()
	return u.String()
}

func (c *Client) roundTrip(ctx context.Context, ep Endpoint, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, networkError(ep, fmt.Sprintf("invalid request: %v", err), err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, c.transportError(ep, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, c.transportError(ep, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) transportError(ep Endpoint, err error) *ClientError {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return networkError(ep, fmt.Sprintf("timeout of %dms exceeded", c.timeout.Milliseconds()), err)
	}
	if errors.Is(err, context.Canceled) {
		return networkError(ep, "request canceled", err)
	}
	cause := err
	var ue *url.Error
	if errors.As(err, &ue) {
		cause = ue.Err
	}
	return networkError(ep, "Network Error: "+cause.Error(), err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// httpError builds the KindHTTP error, appending the API's "detail" field when present
func httpError(ep Endpoint, status int, body []byte) *ClientError {
	msg := fmt.Sprintf("Request failed with status code %d", status)
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil && strings.TrimSpace(detail) != "" {
			msg += ": " + detail
		}
	}
	return &ClientError{Kind: KindHTTP, Endpoint: ep, Status: status, Message: msg}
}
