package symmetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultFetchTimeout is the per-attempt HTTP timeout for snapshot fetches.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultFetchRetries is the number of attempts before giving up.
	DefaultFetchRetries = 3

	defaultFetchBackoff = 500 * time.Millisecond

	// maxSnapshotBytes caps a fetched snapshot body.
	maxSnapshotBytes = 64 << 20
)

// FetchOption configures FetchSnapshot
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultFetchRetries,
		baseBackoff: defaultFetchBackoff,
	}
}

// WithFetchTimeout sets the HTTP request timeout.
func WithFetchTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.timeout = d }
}

// WithFetchRetries sets the maximum number of attempts.
func WithFetchRetries(n int) FetchOption {
	return func(c *fetchConfig) { c.maxRetries = n }
}

// WithFetchBackoff sets the base delay, doubled after every failed attempt.
func WithFetchBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.baseBackoff = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) { c.client = client }
}

// IsRemote reports whether src names an http(s) snapshot rather than a file.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// errPermanent marks fetch failures that retrying cannot fix
type errPermanent struct{ err error }

func (e errPermanent) Error() string { return e.err.Error() }
func (e errPermanent) Unwrap() error { return e.err }

// FetchSnapshot downloads and parses a snapshot JSON document. Transport errors and
// 5xx responses are retried with exponential backoff; 4xx responses and malformed
// bodies fail at once.
func FetchSnapshot(ctx context.Context, url string, opts ...FetchOption) (*Snapshot, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch snapshot: URL is empty")
	}

	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries < 1 {
		cfg.maxRetries = 1
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	backoff := cfg.baseBackoff
	for attempt := range cfg.maxRetries {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch snapshot: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := doFetch(ctx, client, url)
		if err != nil {
			var perm errPermanent
			if errors.As(err, &perm) || ctx.Err() != nil {
				return nil, fmt.Errorf("fetch snapshot: %w", err)
			}
			lastErr = err
			continue
		}

		snap, err := ParseSnapshotJSON(body)
		if err != nil {
			return nil, fmt.Errorf("fetch snapshot: %w", err)
		}
		return snap, nil
	}

	return nil, fmt.Errorf("fetch snapshot: all %d attempts failed: %w", cfg.maxRetries, lastErr)
}

// doFetch performs a single GET and returns the body
func doFetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errPermanent{fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, errPermanent{fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}
