package instagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
	"igtail/pkg/ratelimit"
)

const maxBodySize = 8 << 20

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Location returns the redirect target, if any.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Classify returns nil for a clean 2xx answer. Challenge markers are reported
// even on 2xx.
func (r *Response) Classify() *errs.Error {
	return errs.ClassifyResponse(r.StatusCode, r.Body)
}

// Client sends requests to the platform with a fixed header and cookie set.
// It never follows redirects so callers can inspect challenge redirects.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	cookies    []*http.Cookie
	baseURL    string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient wraps httpClient. A nil limiter disables throttling.
func NewClient(httpClient *http.Client, baseURL string, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	hc := *httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		httpClient: &hc,
		headers:    make(map[string]string),
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
		logger:     log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetCookie adds a cookie sent with every request.
func (c *Client) SetCookie(name, value string) {
	c.cookies = append(c.cookies, &http.Cookie{Name: name, Value: value})
}

// Get requests path, relative to the base URL unless absolute, with query.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Do performs one request and reads the whole body. Transport failures are
// returned as classified *errs.Error values; HTTP statuses are left to the
// caller.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, extra map[string]string) (*Response, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range extra {
		req.Header.Set(key, value)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   method,
			"url":      req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errs.NewNetworkError(fmt.Errorf("read response body: %w", err))
	}

	logger.LogHTTPRequest(c.logger, method, req.URL.Path, resp.StatusCode, duration)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
