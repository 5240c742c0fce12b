// Package translator translates single texts through the upstream
// LibreTranslate-compatible backend. A call never fails from the caller's
// point of view: every failure degrades to an empty string.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pricofy/translate-relay/internal/domain"
	"github.com/pricofy/translate-relay/internal/metrics"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 20 * time.Second

// maxResponseBytes caps the upstream body; a longer body fails to parse.
const maxResponseBytes = 8 << 20

var utf8BOM = []byte("\xEF\xBB\xBF")

// Options configures a Client.
type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// Breaker enables the circuit breaker when non-nil.
	Breaker *BreakerOptions
	// HTTPClient overrides the default client built by NewHTTPClient.
	HTTPClient *http.Client
}

// BreakerOptions configures the circuit breaker in front of the backend.
type BreakerOptions struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Client is the item translator.
type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned %s", e.status)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	if e.err == nil {
		return "upstream response has no string translatedText"
	}
	return fmt.Sprintf("failed to parse upstream response: %v", e.err)
}

func (e *decodeError) Unwrap() error { return e.err }

// New creates a Client. A nil logger is replaced by a no-op logger and a nil
// metrics value records nothing.
func New(opts Options, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}

	c := &Client{
		url:        opts.URL,
		apiKey:     opts.APIKey,
		timeout:    opts.Timeout,
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "translator")),
		metrics:    m,
	}

	if opts.Breaker != nil {
		c.breaker = newBreaker(*opts.Breaker, c.logger)
	}

	return c
}

// NewHTTPClient returns a client on a cloned default transport that honors
// the proxy environment variables. It sets no client-wide timeout; each call
// carries its own deadline.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment
	transport.MaxIdleConnsPerHost = 100

	return &http.Client{Transport: transport}
}

func newBreaker(opts BreakerOptions, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Translate returns the translation of text, or "" when text is empty or the
// upstream call fails for any reason.
func (c *Client) Translate(ctx context.Context, text, source, target string) string {
	if text == "" {
		c.metrics.IncEmptyItem()
		return ""
	}

	translated, err := c.execute(ctx, text, source, target)
	if err != nil {
		reason := failureReason(err)
		c.metrics.IncUpstreamFailure(reason)

		var se *statusError
		if errors.As(err, &se) {
			c.logger.Warn("upstream translation error",
				zap.Int("status_code", se.code),
				zap.String("status", se.status))
		} else {
			c.logger.Warn("upstream translation call failed",
				zap.String("reason", reason),
				zap.Error(err))
		}
		return ""
	}

	return translated
}

func (c *Client) execute(ctx context.Context, text, source, target string) (string, error) {
	if c.breaker == nil {
		return c.call(ctx, text, source, target)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, text, source, target)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) call(ctx context.Context, text, source, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(domain.UpstreamRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: domain.UpstreamFormat,
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	defer func() { c.metrics.ObserveUpstream(time.Since(start)) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &statusError{code: resp.StatusCode, status: resp.Status}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &decodeError{err: err}
	}

	var body domain.UpstreamResponse
	if err := json.Unmarshal(bytes.TrimPrefix(raw, utf8BOM), &body); err != nil {
		return "", &decodeError{err: err}
	}

	translated, ok := body.Text()
	if !ok {
		return "", &decodeError{}
	}
	return translated, nil
}

func failureReason(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return metrics.ReasonBreakerOpen
	}
	var se *statusError
	if errors.As(err, &se) {
		return metrics.ReasonStatus
	}
	var de *decodeError
	if errors.As(err, &de) {
		if errors.Is(err, context.DeadlineExceeded) {
			return metrics.ReasonTimeout
		}
		return metrics.ReasonDecode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return metrics.ReasonTimeout
	}
	return metrics.ReasonTransport
}
