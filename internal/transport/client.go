// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package transport is the JSON-over-HTTP client shared by the backend and
// gateway clients.
//
// Every call has an explicit deadline, passes through an optional rate
// limiter, and fails with a typed *Error. Calls are never retried or
// short-circuited here: every cycle reaches the upstream, and the
// synchronization loop is the retry mechanism.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/panelsync/internal/metrics"
)

const (
	// maxErrorBodySize limits the error response excerpt kept in *Error.
	maxErrorBodySize = 4 * 1024

	// maxResponseSize bounds successful responses; image payloads are the largest.
	maxResponseSize = 32 << 20

	defaultTimeout = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// Name identifies the upstream in errors, logs and metrics.
	Name    string
	BaseURL string

	// Headers are sent on every request.
	Headers map[string]string

	// Timeout is the default per-call deadline.
	Timeout time.Duration

	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64

	InsecureSkipVerify bool

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// Request describes one upstream call.
type Request struct {
	// Op names the operation for errors and metrics.
	Op     string
	Method string
	Path   string
	Body   any

	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// Client performs JSON calls against one upstream.
type Client struct {
	name       string
	baseURL    string
	headers    map[string]string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, errors.New("transport: name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport %s: base URL is required", cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed backends
		}
		httpClient = &http.Client{Transport: tr}
	}

	c := &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    cfg.Headers,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.name
}

// GetJSON performs a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, op, path string, out any) error {
	return c.Do(ctx, Request{Op: op, Method: http.MethodGet, Path: path}, out)
}

// PostJSON posts body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, body, out any) error {
	return c.Do(ctx, Request{Op: op, Method: http.MethodPost, Path: path, Body: body}, out)
}

// Do performs req and decodes the response into out (skipped when out is nil).
// Cancellation of ctx is returned as ctx.Err(), wrapped but not classified.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s %s: %w", c.name, req.Op, ctx.Err())
			}
			return &Error{Upstream: c.name, Op: req.Op, Kind: KindTimeout, Err: err}
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.exchange(callCtx, req)
	if err != nil {
		err = c.classify(ctx, req.Op, err)
		c.record(req.Op, err, start)
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			err = &Error{Upstream: c.name, Op: req.Op, Kind: KindMalformed, Err: err}
			c.record(req.Op, err, start)
			return err
		}
	}
	c.record(req.Op, nil, start)
	return nil
}

// exchange performs one HTTP round trip and returns the raw successful body.
func (c *Client) exchange(ctx context.Context, req Request) ([]byte, error) {
	var reader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		kind := KindRejected
		if resp.StatusCode >= http.StatusInternalServerError {
			kind = KindUnavailable
		}
		return nil, &Error{
			Upstream:   c.name,
			Op:         req.Op,
			Kind:       kind,
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       readBodyForError(resp.Body),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

// classify maps a transport failure to an *Error.
func (c *Client) classify(parent context.Context, op string, err error) error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if parent.Err() != nil {
		return fmt.Errorf("%s %s: %w", c.name, op, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &Error{Upstream: c.name, Op: op, Kind: KindTimeout, Err: err}
	}
	return &Error{Upstream: c.name, Op: op, Kind: KindUnavailable, Err: err}
}

func (c *Client) record(op string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind, ok := KindOf(err); ok {
			outcome = string(kind)
		}
	}
	metrics.RecordUpstreamRequest(c.name, op, outcome, time.Since(start))
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// readBodyForError reads a bounded excerpt of an error response.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return strings.TrimSpace(string(body))
}

// parseRetryAfter understands the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
