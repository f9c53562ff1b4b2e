package irisfast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// StatusError is a non-2xx answer from the Iris HTTP API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("iris api error: status=%d body=%s", e.Code, e.Body)
}

// Client talks to the Iris HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// endpoint names one Iris API call. Only idempotent calls are retried.
type endpoint struct {
	method     string
	path       string
	idempotent bool
}

var (
	configEndpoint  = endpoint{method: fasthttp.MethodGet, path: "/config", idempotent: true}
	decryptEndpoint = endpoint{method: fasthttp.MethodPost, path: "/decrypt", idempotent: true}
	replyEndpoint   = endpoint{method: fasthttp.MethodPost, path: "/reply"}
)

const (
	baseBackoff = 100 * time.Millisecond
	maxBackoff  = 3200 * time.Millisecond
	maxErrBody  = 512
)

func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.call(ctx, configEndpoint, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) Decrypt(ctx context.Context, data string) (string, error) {
	var resp DecryptResponse
	if err := c.call(ctx, decryptEndpoint, DecryptRequest{Data: data}, &resp); err != nil {
		return "", err
	}
	return resp.Decrypted, nil
}

// SendMessage posts a text reply. Replies are never retried.
func (c *Client) SendMessage(ctx context.Context, room, message string) error {
	return c.call(ctx, replyEndpoint, ReplyRequest{Type: "text", Room: room, Data: message}, nil)
}

// SendImage posts a base64 PNG reply, typically a rendered board.
func (c *Client) SendImage(ctx context.Context, room, imageBase64 string) error {
	return c.call(ctx, replyEndpoint, ImageReplyRequest{Type: "image", Room: room, Data: imageBase64}, nil)
}

func (c *Client) call(ctx context.Context, ep endpoint, in, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	if err := c.prepare(req, ep, in); err != nil {
		return err
	}

	attempts := 1
	if ep.idempotent && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = c.roundTrip(ctx, req, resp, out)
		if lastErr == nil || !retryable(lastErr) || attempt == attempts {
			return lastErr
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("iris: no attempt made")
	}
	return lastErr
}

func (c *Client) prepare(req *fasthttp.Request, ep endpoint, in any) error {
	req.Header.SetMethod(ep.method)
	req.SetRequestURI(c.baseURL + ep.path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if in == nil {
		return nil
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", ep.path, err)
	}
	req.SetBody(payload)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, out any) error {
	resp.Reset()
	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return &StatusError{Code: status, Body: truncate(string(resp.Body()), maxErrBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

// retryable is true for transport failures and gateway-side 5xx answers.
func retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	switch se.Code {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from baseBackoff and stops growing at maxBackoff.
func backoffDuration(attempt int) time.Duration {
	d := baseBackoff
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
