// Package sourcehttp implements the per-source HTTP client shared by
// every adapter in internal/sources: rate limiting, response caching,
// and retry-with-backoff on transient failures.
package sourcehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"covergrab/internal/ratelimit"
)

const (
	maxTries = 3

	downloadReadTimeout = 60 * time.Second
)

// retryDelay is the fixed backoff between retries of a transient
// failure. It's a var, not a const, so tests can shrink it.
var retryDelay = 5 * time.Second

// httpError wraps a non-2xx response.
type httpError struct {
	url    string
	code   int
	status string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("sourcehttp: GET %s: server returned %d (%q)", e.url, e.code, e.status)
}

// fatal reports whether retrying the request that produced e would be
// pointless: the request itself is malformed, or the resource genuinely
// doesn't exist.
func (e *httpError) fatal() bool {
	switch e.code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}

// Config describes one source's connection parameters, supplied by the
// adapter that owns the Client.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	CommonHeaders   map[string]string
	RateLimit       int // requests per RateLimitWindow; 0 means unlimited
	RateLimitWindow time.Duration
}

// Client is one source's HTTP access point: rate limiting plus cached,
// retried GETs, uncached but rate-limited raw downloads, and uncached,
// unlimited HEAD probes.
type Client struct {
	name    string
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
	caches  *caches
}

// New returns a Client for the named source, pulling its caches from
// reg (opening them on first use).
func New(name string, cfg Config, reg *Registry) (*Client, error) {
	c, err := reg.get(name)
	if err != nil {
		return nil, fmt.Errorf("sourcehttp: %s: %w", name, err)
	}
	return &Client{
		name:    name,
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RateLimit, cfg.RateLimitWindow),
		caches:  c,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range c.cfg.CommonHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Head issues an unrated, uncached HEAD request and reports whether the
// response was 2xx. It's used only to probe static CDN resources whose
// existence can't otherwise be checked cheaply.
func (c *Client) Head(ctx context.Context, url string) bool {
	req, err := c.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// DownloadCover streams url's response body to w. Rate-limited, and
// bounded by a per-request read timeout on top of the client's overall
// timeout.
func (c *Client) DownloadCover(ctx context.Context, url string, w io.Writer) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, downloadReadTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{url: url, code: resp.StatusCode, status: resp.Status}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// DownloadThumbnail downloads url's body through the long-lived
// thumbnail cache.
func (c *Client) DownloadThumbnail(ctx context.Context, url string) ([]byte, error) {
	return c.caches.thumb.GetOrSet(ctx, url, func(ctx context.Context) ([]byte, error) {
		var buf bytes.Buffer
		if err := c.DownloadCover(ctx, url, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// GetAPI fetches url's body through the API cache, retrying transient
// failures with a fixed backoff, per the teacher's api.send pattern.
func (c *Client) GetAPI(ctx context.Context, url string) ([]byte, error) {
	return c.caches.api.GetOrSet(ctx, url, func(ctx context.Context) ([]byte, error) {
		return c.fetchWithRetry(ctx, url)
	})
}

func (c *Client) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for tries := 0; tries < maxTries; tries++ {
		if tries > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if he, ok := err.(*httpError); ok && he.fatal() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{url: url, code: resp.StatusCode, status: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

// GetJSON fetches url via GetAPI and decodes it as JSON into dst.
func GetJSON[R any](ctx context.Context, c *Client, url string) (R, error) {
	var dst R
	body, err := c.GetAPI(ctx, url)
	if err != nil {
		return dst, err
	}
	if err := json.Unmarshal(body, &dst); err != nil {
		return dst, fmt.Errorf("sourcehttp: decoding JSON from %s: %w", url, err)
	}
	return dst, nil
}

// NotFoundError marks an XML fetch that failed with HTTP 404, which
// several sources use to mean "no results" rather than a real error.
type NotFoundError struct{ URL string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("sourcehttp: %s: not found", e.URL) }

// GetXML fetches url via GetAPI and decodes it as XML into dst. A 404
// response is reported as *NotFoundError so callers can translate it
// into an empty result set instead of a hard failure.
func GetXML[R any](ctx context.Context, c *Client, url string) (R, error) {
	var dst R
	body, err := c.caches.api.GetOrSet(ctx, url, func(ctx context.Context) ([]byte, error) {
		return c.fetchWithRetry(ctx, url)
	})
	if err != nil {
		var he *httpError
		if e, ok := err.(*httpError); ok {
			he = e
		}
		if he != nil && he.code == http.StatusNotFound {
			return dst, &NotFoundError{URL: url}
		}
		return dst, err
	}
	if err := xml.Unmarshal(body, &dst); err != nil {
		return dst, fmt.Errorf("sourcehttp: decoding XML from %s: %w", url, err)
	}
	return dst, nil
}
