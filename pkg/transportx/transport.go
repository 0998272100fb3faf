// Package transportx performs outbound HTTP calls with bounded retries and an
// overall deadline that spans the whole retry sequence.
package transportx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 20 * time.Second
	DefaultRetryDelay  = time.Second

	// maxLoggedBody caps how much of a buffered body reaches the debug log.
	maxLoggedBody = 512
)

type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Timeout bounds the whole sequence: every attempt plus every wait.
	Timeout time.Duration

	// AttemptTimeout bounds a single attempt. Zero means only Timeout applies.
	AttemptTimeout time.Duration

	Backoff Backoff
	Policy  Policy
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Backoff == nil {
		c.Backoff = Fixed(DefaultRetryDelay)
	}
	if c.Policy.TransientStatuses == nil {
		c.Policy = DefaultPolicy()
	}
	return c
}

// Request describes one logical call. A non-nil Body is JSON encoded once
// and replayed on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
}

// RetryEvent describes a failed attempt that is about to be retried.
type RetryEvent struct {
	Method  string
	URL     string
	Attempt int // the attempt that failed, 1-based
	Delay   time.Duration
	Status  int // zero when the attempt failed without a response
	Err     error
}

// Reason is a short description of why the attempt failed.
func (e RetryEvent) Reason() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("status %d", e.Status)
}

// Result summarises a finished call.
type Result struct {
	Method   string
	URL      string
	Attempts int
	Status   int
	Duration time.Duration
	Err      error
}

// Transport is safe for concurrent use. All calls share one connection pool,
// and a failing call never closes idle connections in it.
type Transport struct {
	client   *http.Client
	cfg      Config
	onRetry  func(context.Context, RetryEvent)
	onResult func(context.Context, Result)
}

type Option func(*Transport)

// WithHTTPClient replaces the pooled cleanhttp client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithRetryHook is called before every backoff wait.
func WithRetryHook(fn func(context.Context, RetryEvent)) Option {
	return func(t *Transport) { t.onRetry = fn }
}

// WithResultHook is called once per Do with the final outcome.
func WithResultHook(fn func(context.Context, Result)) Option {
	return func(t *Transport) { t.onResult = fn }
}

func New(cfg Config, opts ...Option) *Transport {
	t := &Transport{
		client: cleanhttp.DefaultPooledClient(),
		cfg:    cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(t)
	}

	c := *t.client
	if t.cfg.AttemptTimeout > 0 {
		c.Timeout = t.cfg.AttemptTimeout
	}
	rt := c.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.Transport = keepIdle{rt}
	t.client = &c
	return t
}

// keepIdle hides CloseIdleConnections from the pooled client. retryablehttp
// calls it whenever a call gives up, which would otherwise drop connections
// other in-flight calls are about to reuse.
type keepIdle struct {
	http.RoundTripper
}

// Config returns the effective configuration after defaults.
func (t *Transport) Config() Config { return t.cfg }

// Do runs the request under the retry policy.
//
// A 200 response comes back fully buffered with a fresh body. Any other
// response the policy does not retry is returned untouched with a nil error;
// the caller must close its body. Failures are *ExhaustedError,
// *TimeoutError, or the caller's context error.
func (t *Transport) Do(parent context.Context, in Request) (*http.Response, error) {
	method := in.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	log := slogx.FromContext(parent).With("upstream_method", method, "upstream_url", in.URL)

	var body []byte
	if in.Body != nil {
		b, err := json.Marshal(in.Body)
		if err != nil {
			return nil, fmt.Errorf("transportx: encode body: %w", err)
		}
		body = b
	}

	ctx, cancel := context.WithTimeout(parent, t.cfg.Timeout)

	var rawBody any
	if body != nil {
		rawBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, in.URL, rawBody)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transportx: build request: %w", err)
	}
	for k, vs := range in.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	// Bookkeeping is per call; hooks below run sequentially inside client.Do.
	var (
		attempts      int
		lastStatus    int
		lastErr       error
		lastRetryable bool
	)

	client := &retryablehttp.Client{
		HTTPClient: t.client,
		RetryMax:   t.cfg.MaxAttempts - 1,
		RequestLogHook: func(_ retryablehttp.Logger, _ *http.Request, n int) {
			attempts = n + 1
			log.Debug("outbound attempt", "attempt", attempts)
		},
		CheckRetry: func(ctx context.Context, resp *http.Response, err error) (bool, error) {
			lastStatus, lastErr = 0, err
			if resp != nil {
				lastStatus = resp.StatusCode
			}
			retry, checkErr := t.cfg.Policy.CheckRetry(ctx, resp, err)
			lastRetryable = retry
			return retry, checkErr
		},
		Backoff: func(_, _ time.Duration, n int, _ *http.Response) time.Duration {
			ev := RetryEvent{
				Method:  method,
				URL:     in.URL,
				Attempt: n + 1,
				Delay:   t.cfg.Backoff(n + 1),
				Status:  lastStatus,
				Err:     lastErr,
			}
			log.Warn("outbound request failed, retrying",
				"attempt", ev.Attempt,
				"delay", ev.Delay,
				"reason", ev.Reason(),
			)
			if t.onRetry != nil {
				t.onRetry(ctx, ev)
			}
			return ev.Delay
		},
		ErrorHandler: func(resp *http.Response, err error, n int) (*http.Response, error) {
			if resp != nil {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
				_ = resp.Body.Close()
			}
			if lastRetryable {
				return nil, &ExhaustedError{Attempts: n, LastStatus: lastStatus, Err: err}
			}
			return nil, err
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		err = t.classify(parent, ctx, method, in.URL, attempts, err)
		cancel()
		t.finish(parent, log, Result{Method: method, URL: in.URL, Attempts: attempts, Duration: time.Since(start), Err: err})
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		t.finish(parent, log, Result{Method: method, URL: in.URL, Attempts: attempts, Status: resp.StatusCode, Duration: time.Since(start)})
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		err = t.classify(parent, ctx, method, in.URL, attempts, err)
		cancel()
		t.finish(parent, log, Result{Method: method, URL: in.URL, Attempts: attempts, Status: resp.StatusCode, Duration: time.Since(start), Err: err})
		return nil, err
	}
	cancel()

	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))

	log.Debug("outbound response body", "body", truncate(data, maxLoggedBody))
	t.finish(parent, log, Result{Method: method, URL: in.URL, Attempts: attempts, Status: resp.StatusCode, Duration: time.Since(start)})
	return resp, nil
}

// Get is Do with a GET and no body.
func (t *Transport) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return t.Do(ctx, Request{Method: http.MethodGet, URL: url, Header: header})
}

// GetJSON fetches url and decodes a 200 body into out. Other statuses
// become *StatusError.
func (t *Transport) GetJSON(ctx context.Context, url string, out any) error {
	resp, err := t.Get(ctx, url, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: b}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transportx: decode %s: %w", url, err)
	}
	return nil
}

func (t *Transport) classify(parent, ctx context.Context, method, url string, attempts int, err error) error {
	if errors.Is(err, ErrExhausted) {
		return err
	}
	if parentErr := parent.Err(); parentErr != nil {
		return fmt.Errorf("transportx: %s %s: %w", method, url, parentErr)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Timeout: t.cfg.Timeout, Attempts: attempts, Err: err}
	}
	return fmt.Errorf("transportx: %s %s: %w", method, url, err)
}

func (t *Transport) finish(ctx context.Context, log *slog.Logger, res Result) {
	if res.Err != nil {
		log.Error("outbound request failed",
			"attempts", res.Attempts,
			"duration_ms", res.Duration.Milliseconds(),
			"err", res.Err,
		)
	} else {
		log.Info("outbound request completed",
			"status", res.Status,
			"attempts", res.Attempts,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	if t.onResult != nil {
		t.onResult(ctx, res)
	}
}

// cancelOnClose releases the overall deadline once the caller is done with a
// streamed body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
