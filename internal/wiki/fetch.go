// Package wiki fetches page markup from MediaWiki sites.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the tool to wiki operators.
	DefaultUserAgent = "wikisync/1.0 (citation sync)"

	// DefaultRequestsPerSecond paces successive page fetches.
	DefaultRequestsPerSecond = 2.0

	// MaxPageBytes caps how much of a response body is read.
	MaxPageBytes = 16 << 20
)

// Errors.
var (
	ErrInvalidURL   = errors.New("invalid page URL")
	ErrPageNotFound = errors.New("wiki page not found (404)")
	ErrRateLimited  = errors.New("wiki rate limit exceeded")
	ErrFetch        = errors.New("fetching wiki page")
	ErrNetworkError = errors.New("network error fetching wiki page")
)

// Fetcher retrieves page text over HTTP.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	rawMarkup  bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRawMarkup requests wikitext (action=raw) instead of rendered HTML.
func WithRawMarkup(raw bool) Option {
	return func(f *Fetcher) {
		f.rawMarkup = raw
	}
}

// WithRateLimit sets the sustained fetch rate. Non-positive values disable
// limiting.
func WithRateLimit(perSecond float64) Option {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewFetcher creates a page fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ValidatePageURL checks that s is an absolute http(s) URL.
func ValidatePageURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, s)
	}
	return nil
}

// RawURL returns pageURL with action=raw added to its query.
func RawURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	q.Set("action", "raw")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch returns the text of the page at pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ValidatePageURL(pageURL); err != nil {
		return "", err
	}

	target := pageURL
	if f.rawMarkup {
		var err error
		if target, err = RawURL(pageURL); err != nil {
			return "", err
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Success
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrPageNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	default:
		return "", fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	return string(body), nil
}
