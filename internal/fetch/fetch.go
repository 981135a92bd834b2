// Package fetch downloads installer manifests and the files they reference.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/marcohefti/polecat/internal/redact"
)

const (
	defaultTimeout = 30 * time.Minute
	// maxManifestBytes bounds Bytes(); installer manifests are small JSON documents.
	maxManifestBytes = 8 << 20
)

// ErrNotFound is returned for HTTP 404 and missing file:// paths.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response other than 404.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string { return fmt.Sprintf("GET %s: %s", e.URL, e.Status) }

type Options struct {
	UserAgent string
	Retries   int
	Timeout   time.Duration
	Logger    *zap.Logger
	Redactor  *redact.Redactor
}

type Client struct {
	http      *retryablehttp.Client
	userAgent string
	log       *zap.Logger
	redactor  *redact.Redactor
}

func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rd := opts.Redactor
	if rd == nil {
		rd = redact.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = opts.Retries
	hc.RetryWaitMin = 250 * time.Millisecond
	hc.RetryWaitMax = 5 * time.Second
	hc.HTTPClient.Timeout = timeout
	hc.Logger = leveledLogger{log: log.Named("http"), redactor: rd}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "polecat"
	}
	return &Client{http: hc, userAgent: ua, log: log, redactor: rd}
}

// UserAgent is sent with every request.
func (c *Client) UserAgent() string { return c.userAgent }

// InstallerURL joins the API base and an installer name. The base is expected
// to end with a slash, as the default does.
func InstallerURL(base, name string) string {
	return base + url.PathEscape(name)
}

// Open starts a download. size is the advertised length, or -1 when unknown.
// file:// URLs are served from the local filesystem.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, -1, fmt.Errorf("invalid url %q: %w", c.redactor.URL(rawURL), err)
	}
	switch u.Scheme {
	case "file":
		return openLocal(u.Path)
	case "http", "https":
	default:
		return nil, -1, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("GET", zap.String("url", c.redactor.URL(rawURL)))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("GET %s: %w", c.redactor.URL(rawURL), err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, -1, fmt.Errorf("GET %s: %w", c.redactor.URL(rawURL), ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, -1, &StatusError{URL: c.redactor.URL(rawURL), StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, resp.ContentLength, nil
}

// Bytes downloads a small document fully into memory.
func (c *Client) Bytes(ctx context.Context, rawURL string) ([]byte, error) {
	rc, _, err := c.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxManifestBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxManifestBytes {
		return nil, fmt.Errorf("GET %s: response exceeds %d bytes", c.redactor.URL(rawURL), maxManifestBytes)
	}
	return b, nil
}

func openLocal(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, -1, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, -1, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, -1, err
	}
	return f, st.Size(), nil
}
