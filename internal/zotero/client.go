// Package zotero is a small client for the Zotero Web API v3 and a record
// store backed by a Zotero user or group library.
package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Zotero Web API base URL.
	BaseURL = "https://api.zotero.org"

	// APIVersion is sent with every request.
	APIVersion = "3"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps well under the API's backoff threshold.
	DefaultRequestsPerSecond = 1.0

	// PageSize is the maximum number of items the API returns per request.
	PageSize = 100
)

// Library types.
const (
	LibraryUser  = "user"
	LibraryGroup = "group"
)

// Client is a rate-limited HTTP client for one Zotero library.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	apiKey      string
	baseURL     string
	libraryType string
	libraryID   string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithRateLimit sets the sustained request rate. Non-positive values
// disable limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a client for the library identified by libraryType
// ("user" or "group") and libraryID.
func NewClient(libraryType, libraryID string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		baseURL:     BaseURL,
		libraryType: libraryType,
		libraryID:   libraryID,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// libraryPath returns the URL prefix of the library, e.g. "/users/123".
func (c *Client) libraryPath() string {
	if c.libraryType == LibraryGroup {
		return "/groups/" + c.libraryID
	}
	return "/users/" + c.libraryID
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response) error {
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == 404:
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode == 429:
		return fmt.Errorf("%w: status %d (retry after %q)", ErrRateLimited, resp.StatusCode, resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Code: "api_error", Message: msg}
	}
	return nil
}

// do sends one paced request. The caller must close the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte, header http.Header) (*http.Response, error) {
	if c.libraryID == "" {
		return nil, fmt.Errorf("%w: missing library ID", ErrMissingCredentials)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Zotero-API-Version", APIVersion)
	if c.apiKey != "" {
		req.Header.Set("Zotero-API-Key", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}

	if err := checkHTTPErrors(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// ListTopItems returns every top-level item in the library, following
// pagination until Total-Results items have been read.
func (c *Client) ListTopItems(ctx context.Context) ([]Item, error) {
	var items []Item
	start := 0

	for {
		path := fmt.Sprintf("%s/items/top?format=json&limit=%d&start=%d", c.libraryPath(), PageSize, start)
		page, total, err := c.listPage(ctx, path)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		start += len(page)

		if len(page) == 0 || total < 0 || start >= total {
			break
		}
	}

	return items, nil
}

// listPage fetches one page of items. total is -1 when the server did not
// send a Total-Results header.
func (c *Client) listPage(ctx context.Context, path string) ([]Item, int, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var envelopes []itemEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelopes); err != nil {
		return nil, 0, fmt.Errorf("%w: parsing items: %v", ErrInvalidResponse, err)
	}

	total := -1
	if h := resp.Header.Get("Total-Results"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad Total-Results header %q", ErrInvalidResponse, h)
		}
		total = n
	}

	items := make([]Item, 0, len(envelopes))
	for _, env := range envelopes {
		item := env.Data
		item.Key = env.Key
		item.Version = env.Version
		items = append(items, item)
	}
	return items, total, nil
}

// CreateItem creates one item and returns the key Zotero assigned to it.
func (c *Client) CreateItem(ctx context.Context, item Item) (string, error) {
	body, err := json.Marshal([]Item{item})
	if err != nil {
		return "", fmt.Errorf("marshaling item: %w", err)
	}

	header := http.Header{}
	header.Set("Zotero-Write-Token", newWriteToken())

	resp, err := c.do(ctx, http.MethodPost, c.libraryPath()+"/items", body, header)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var wr writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("%w: parsing write response: %v", ErrInvalidResponse, err)
	}

	if f, ok := wr.Failed["0"]; ok {
		return "", &APIError{StatusCode: f.Code, Code: "write_failed", Message: f.Message}
	}
	if key, ok := wr.Success["0"]; ok {
		return key, nil
	}
	if key, ok := wr.Unchanged["0"]; ok {
		return key, nil
	}
	return "", fmt.Errorf("%w: write response has no result for item", ErrInvalidResponse)
}

// newWriteToken returns a random 32-character token so a retried request
// is not applied twice.
func newWriteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
