// Package fetch implements document retrieval over http(s), file:// URLs,
// and bare local paths, with an optional on-disk cache for bulk downloads.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Response is the uniform retrieval result. OK mirrors a 2xx status; local
// reads report 200 on success and 404 when the file does not exist.
type Response struct {
	OK        bool
	Status    int
	Body      []byte
	MediaType string
}

// Client retrieves documents. The zero value is not usable; construct with
// New.
type Client struct {
	http      *http.Client
	userAgent string
	cacheDir  string
}

// New creates a retrieval client. timeout bounds each request; cacheDir (may
// be empty) is where Download places bulk artifacts.
func New(timeout time.Duration, userAgent, cacheDir string) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		cacheDir:  cacheDir,
	}
}

// CacheDir returns the bulk-download cache directory.
func (c *Client) CacheDir() string { return c.cacheDir }

// CloseIdle releases pooled connections. Safe to call more than once.
func (c *Client) CloseIdle() { c.http.CloseIdleConnections() }

// Get retrieves rawurl. A transport-level error is returned as err; a
// non-2xx response is returned with OK=false and the status code.
func (c *Client) Get(ctx context.Context, rawurl string) (*Response, error) {
	if local, ok := localPath(rawurl); ok {
		return readLocal(local)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", rawurl, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body %s: %w", rawurl, err)
	}

	mediaType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}

	return &Response{
		OK:        resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:    resp.StatusCode,
		Body:      body,
		MediaType: mediaType,
	}, nil
}

// Download retrieves rawurl into the cache directory under name and returns
// the file path. Used for bulk artifacts (tarballs, archives).
func (c *Client) Download(ctx context.Context, rawurl, name string) (string, error) {
	resp, err := c.Get(ctx, rawurl)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("fetch: %s: status %d", rawurl, resp.Status)
	}
	dir := c.cacheDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: mkdir cache: %w", err)
	}
	dest := filepath.Join(dir, name)
	if err := os.WriteFile(dest, resp.Body, 0o644); err != nil {
		return "", fmt.Errorf("fetch: write %s: %w", dest, err)
	}
	return dest, nil
}

// localPath reports whether rawurl names a local file and returns its path.
func localPath(rawurl string) (string, bool) {
	if strings.HasPrefix(rawurl, "file://") {
		u, err := url.Parse(rawurl)
		if err != nil {
			return "", false
		}
		return u.Path, true
	}
	if strings.Contains(rawurl, "://") {
		return "", false
	}
	return rawurl, true
}

func readLocal(path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Response{OK: false, Status: http.StatusNotFound}, nil
		}
		return nil, fmt.Errorf("fetch: read %s: %w", path, err)
	}
	return &Response{OK: true, Status: http.StatusOK, Body: data}, nil
}
