package httputil

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
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Iwaschkin/maptoposter/pkg/buildinfo"
	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/observability"
)

// Client defaults.
const (
	DefaultTimeout    = 180 * time.Second
	DefaultAttempts   = 3
	DefaultRetryDelay = 2 * time.Second
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures and unexpected statuses.
	ErrNetwork = errors.New("network error")
)

// Options configures a [Client]. Zero values select the defaults.
type Options struct {
	Timeout     time.Duration
	MinInterval time.Duration // minimum spacing between requests
	Attempts    int
	RetryDelay  time.Duration
	Headers     map[string]string
	Logger      *log.Logger
	HTTPClient  *http.Client
}

// Client is a throttled, retrying HTTP client. It is safe for concurrent
// use; the minimum interval applies across all goroutines sharing it.
type Client struct {
	http        *http.Client
	headers     map[string]string
	minInterval time.Duration
	attempts    int
	delay       time.Duration
	logger      *log.Logger

	mu   sync.Mutex
	last time.Time
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		http:        hc,
		headers:     opts.Headers,
		minInterval: opts.MinInterval,
		attempts:    opts.Attempts,
		delay:       opts.RetryDelay,
		logger:      opts.Logger,
	}
}

// GetJSON performs a GET and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.fetch(ctx, http.MethodGet, rawURL, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// PostForm performs a form-encoded POST and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	return c.fetch(ctx, http.MethodPost, rawURL, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

func (c *Client) fetch(ctx context.Context, method, rawURL, contentType string, payload []byte) ([]byte, error) {
	var body []byte
	err := Retry(ctx, c.attempts, c.delay, func() error {
		var err error
		body, err = c.do(ctx, method, rawURL, contentType, payload)
		if err != nil && IsRetryable(err) {
			c.logger.Warn("request failed, retrying", "method", method, "url", rawURL, "error", err)
		}
		return err
	})
	return body, err
}

func (c *Client) do(ctx context.Context, method, rawURL, contentType string, payload []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))
	c.logger.Debug("http", "method", method, "host", host, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
	}
	return data, nil
}

// wait blocks until minInterval has passed since the previous request.
func (c *Client) wait(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := time.Until(c.last.Add(c.minInterval)); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	c.last = time.Now()
	return nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
		return Retryable(&perrors.RateLimitedError{RetryAfter: retryAfter})
	case code >= 500:
		return Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
