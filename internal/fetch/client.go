// Package fetch is the page transport: browser-like GET requests with the
// session cookie, an optional request-rate ceiling and optional robots.txt rules.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrUnexpectedStatus is wrapped by StatusError for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrDisallowed is returned when robots.txt forbids the path.
	ErrDisallowed = errors.New("path disallowed by robots.txt")
	// ErrBodyTooLarge is returned instead of a silently cut page.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Transport timeouts so a single hung request can't stall a cycle forever.
const (
	connectTimeout  = 10 * time.Second
	responseTimeout = 25 * time.Second
	totalTimeout    = 30 * time.Second

	// maxBodyBytes caps how much of a page is read.
	maxBodyBytes = 8 << 20
)

// StatusError carries the status code of a non-2xx response.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Status, e.URL)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// IsRateLimited reports whether err is an HTTP 429 from the site.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == http.StatusTooManyRequests
}

// Options configures a Client.
type Options struct {
	Cookie    string
	UserAgent string
	Referer   string
	// RequestsPerSecond <= 0 disables the limiter.
	RequestsPerSecond float64
	Robots            *RobotsRules
	HTTPClient        *http.Client
}

// Client fetches pages with the configured header set.
type Client struct {
	http    *http.Client
	headers http.Header
	limiter *rate.Limiter
	robots  *RobotsRules
	maxBody int64
}

// NewClient builds a Client. A nil HTTPClient gets NewHTTPClient("").
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient("")
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		http:    httpClient,
		headers: BrowserHeaders(opts.Cookie, opts.UserAgent, opts.Referer),
		limiter: limiter,
		robots:  opts.Robots,
		maxBody: maxBodyBytes,
	}
}

// BrowserHeaders returns the header set a desktop Chrome sends for a
// same-origin navigation. Empty cookie or referer values are left out.
func BrowserHeaders(cookie, userAgent, referer string) http.Header {
	h := http.Header{}
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	if referer != "" {
		h.Set("Referer", referer)
	}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9,ar;q=0.8")
	h.Set("Sec-Ch-Ua", `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// NewHTTPClient returns an http.Client with explicit connect, header and total
// timeouts. A non-empty proxyURL routes requests through that proxy.
func NewHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		ResponseHeaderTimeout: responseTimeout,
		ForceAttemptHTTP2:     true,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   totalTimeout,
	}
}

// Get retrieves the body of rawURL as text.
func (c *Client) Get(ctx context.Context, rawURL string) (string, error) {
	if c.robots != nil && !c.robots.Allowed(PathFromURL(rawURL)) {
		return "", fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", err
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Status: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("read body %s: %w", rawURL, err)
	}
	if int64(len(body)) > c.maxBody {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, rawURL, c.maxBody)
	}
	return string(body), nil
}
