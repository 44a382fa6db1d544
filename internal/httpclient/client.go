// Package httpclient is the JSON API client shared by the platform adapters.
// Every request waits on the client's own rate limiter; a 429 pauses the
// limiter for the server's Retry-After before the request is retried.
package httpclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/ratelimit"
)

// ErrUnauthorized is wrapped by StatusError for 401 and 403 responses.
var ErrUnauthorized = errors.New("unauthorized")

const (
	defaultRetryAfter = time.Second
	maxRetryAfter     = 2 * time.Minute
	maxErrorBody      = 512
)

// StatusError is returned for any non-2xx response that was not retried
// successfully.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

type Config struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	Accept            string
	UserAgent         string
}

// Authenticator decorates an outgoing request with credentials.
type Authenticator func(req *http.Request)

func BasicAuth(username, token string) Authenticator {
	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + token))
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Basic "+encoded)
	}
}

func BearerToken(token string) Authenticator {
	return TokenAuth("Bearer", token)
}

// TokenAuth sets "Authorization: <scheme> <token>".
func TokenAuth(scheme, token string) Authenticator {
	return func(req *http.Request) {
		req.Header.Set("Authorization", scheme+" "+token)
	}
}

type Client struct {
	http       *http.Client
	limiter    *ratelimit.Limiter
	auth       Authenticator
	log        *logger.Logger
	maxRetries int
	accept     string
	userAgent  string
}

func New(cfg Config, auth Authenticator, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Accept == "" {
		cfg.Accept = "application/json"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "bountywatch/" + logger.Version
	}
	return &Client{
		http: NewHTTPClient(cfg.Timeout),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         1,
		}),
		auth:       auth,
		log:        log,
		maxRetries: cfg.MaxRetries,
		accept:     cfg.Accept,
		userAgent:  cfg.UserAgent,
	}
}

// NewHTTPClient returns an http.Client with pooled, context aware dialing
// and bounded handshake and header timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}

// Limiter exposes the client's limiter, mainly for tests.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// GetJSON fetches url and decodes the JSON body into out. Rate limited and
// transient gateway responses are retried up to the configured limit.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		retry, err := c.get(ctx, url, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) get(ctx context.Context, url string, out interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", c.accept)
	req.Header.Set("User-Agent", c.userAgent)
	if c.auth != nil {
		c.auth(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return false, fmt.Errorf("GET %s: %w", url, err)
	}
	defer CloseBody(resp)
	c.log.LogHTTPRequest(ctx, http.MethodGet, url, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfter(resp.Header.Get("Retry-After"))
		c.limiter.PauseFor(wait)
		c.log.WithContext(ctx).Warnw("Rate limited by platform API", "url", url, "retry_after", wait.String())
		return true, statusError(resp, url)
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		c.limiter.PauseFor(defaultRetryAfter)
		return true, statusError(resp, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return false, statusError(resp, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return false, nil
}

func statusError(resp *http.Response, url string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(body)}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	var d time.Duration
	if secs, err := strconv.ParseFloat(header, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if at, err := http.ParseTime(header); err == nil {
		d = time.Until(at)
	} else {
		return defaultRetryAfter
	}
	if d < 0 {
		return 0
	}
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

// CloseBody drains and closes resp.Body so the connection can be reused.
func CloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
