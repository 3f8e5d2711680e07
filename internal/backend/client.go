// AngelaMos | 2026
// client.go

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
)

const maxBodyBytes = 1 << 20

type Observer interface {
	ObserveBackendRequest(endpoint string, status int, elapsed time.Duration)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	xsrfCookie string
	trustProxy bool
	observer   Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func NewClient(cfg config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout:    cfg.Timeout,
		xsrfCookie: cfg.XSRFCookie,
		trustProxy: cfg.TrustProxy,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.xsrfCookie == "" {
		c.xsrfCookie = "XSRF-TOKEN"
	}

	return c
}

// Credentials are the caller's session material, forwarded verbatim to
// the remote API so that it sees the browser's own session.
type Credentials struct {
	Cookie    string
	XSRFToken string
	Referer   string
}

func (c *Client) CredentialsFromRequest(r *http.Request) Credentials {
	cookie := r.Header.Get("Cookie")

	return Credentials{
		Cookie:    cookie,
		XSRFToken: core.CookieValue(cookie, c.xsrfCookie),
		Referer:   OriginalURL(r, c.trustProxy),
	}
}

// OriginalURL rebuilds the absolute URL the browser asked for.
// X-Forwarded-Proto and X-Forwarded-Host are only read when trustProxy is
// set, since any direct caller can send them.
func OriginalURL(r *http.Request, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if trustProxy {
		if proto := forwardedValue(r, "X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		if fwd := forwardedValue(r, "X-Forwarded-Host"); fwd != "" {
			host = fwd
		}
	}

	return (&url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}).String()
}

func forwardedValue(r *http.Request, header string) string {
	v := r.Header.Get(header)
	if v == "" {
		return ""
	}
	return strings.TrimSpace(strings.Split(v, ",")[0])
}

type request struct {
	method   string
	path     string
	endpoint string
	query    url.Values
	creds    *Credentials
	body     any
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", req.method, req.endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", req.method, req.endpoint, err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.creds != nil {
		applyCredentials(httpReq, *req.creds)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.endpoint, 0, start)
		return fmt.Errorf("%s %s: %w: %w", req.method, req.endpoint, core.ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	c.observe(req.endpoint, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w: %w", req.method, req.endpoint, core.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     req.method,
			Endpoint:   req.endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(raw, 256),
		}
	}

	if out == nil {
		return nil
	}

	return decodeInto(req, raw, out)
}

func decodeInto(req request, raw []byte, out any) error {
	if dst, ok := out.(*[]byte); ok {
		*dst = raw
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf(
			"%s %s: %w: %w",
			req.method,
			req.endpoint,
			core.ErrMalformedResponse,
			err,
		)
	}

	return nil
}

func applyCredentials(r *http.Request, creds Credentials) {
	if creds.Cookie != "" {
		r.Header.Set("Cookie", creds.Cookie)
	}
	r.Header.Set("X-XSRF-TOKEN", creds.XSRFToken)
	if creds.Referer != "" {
		r.Header.Set("Referer", creds.Referer)
	}
}

func (c *Client) observe(endpoint string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackendRequest(endpoint, status, time.Since(start))
}

// StatusError is a non-2xx answer from the remote API.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Endpoint, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, 419:
		return core.ErrNoSession
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return core.ErrInvalidInput
	default:
		return core.ErrUpstream
	}
}

func asStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
