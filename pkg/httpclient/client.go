// Package httpclient wraps outbound platform calls with a per-attempt timeout,
// bounded retries with exponential backoff and uniform error classification.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/maheshrc27/crosspost/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
)

type Client struct {
	hc          *http.Client
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithTimeout bounds every attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithRateLimit throttles attempts to rps requests per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithSleeper replaces the backoff wait, mostly for tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func New(opts ...Option) *Client {
	c := &Client{
		hc:          &http.Client{},
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Unbounded returns a copy without the per-attempt timeout, for large uploads.
func (c *Client) Unbounded() *Client {
	cp := *c
	cp.timeout = 0
	return &cp
}

// HTTPClient exposes the transport for SDK clients that issue their own requests.
func (c *Client) HTTPClient() *http.Client {
	return c.hc
}

// Execute sends one logical request, retrying transient failures.
// payload and headers may be nil.
func (c *Client) Execute(ctx context.Context, method, url string, payload Payload, headers http.Header) (*Response, error) {
	var resp *Response
	err := c.Retry(ctx, func(ctx context.Context) error {
		r, err := c.do(ctx, method, url, payload, headers)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Retry runs fn under the client's retry policy. fn signals a transient HTTP failure by
// returning an *UpstreamError with a retryable status; timeouts are detected from the error.
func (c *Client) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			metrics.UpstreamRetries.Inc()
			wait := c.backoff << (attempt - 2)
			if err := c.sleep(ctx, wait); err != nil {
				return &UnexpectedError{Detail: err.Error(), Err: err}
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &UnexpectedError{Detail: err.Error(), Err: err}
			}
		}

		err := c.attempt(ctx, fn)
		if err == nil {
			metrics.UpstreamRequests.WithLabelValues(KindOK).Inc()
			return nil
		}

		retry, final := c.classify(ctx, err)
		metrics.UpstreamRequests.WithLabelValues(Kind(final)).Inc()
		if !retry || attempt >= c.maxAttempts {
			return final
		}
		slog.Info("retrying upstream call", "attempt", attempt, "error", err)
	}
}

func (c *Client) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(actx)
}

func (c *Client) classify(parent context.Context, err error) (bool, error) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable(), ue
	}
	if errors.Is(err, ErrUpstreamTimeout) {
		return true, err
	}
	if parent.Err() == nil && isTimeout(err) {
		return true, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var unexpected *UnexpectedError
	if errors.As(err, &unexpected) {
		return false, unexpected
	}
	return false, &UnexpectedError{Detail: err.Error(), Err: err}
}

func (c *Client) do(ctx context.Context, method, url string, payload Payload, headers http.Header) (*Response, error) {
	var body io.Reader
	var contentType string
	if payload != nil {
		var err error
		body, contentType, err = payload.encode()
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &UpstreamError{Status: res.StatusCode, Body: string(data)}
	}
	return parseResponse(res.StatusCode, data), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
