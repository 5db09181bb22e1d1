package zotero

import (
	"errors"
	"fmt"
)

// Common errors returned by the Zotero client.
var (
	// ErrNotFound indicates the library or item was not found.
	ErrNotFound = errors.New("not found in Zotero")

	// ErrAuthError indicates an authentication error (missing/invalid API key).
	ErrAuthError = errors.New("Zotero authentication error")

	// ErrRateLimited indicates the server asked us to back off.
	ErrRateLimited = errors.New("Zotero rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with Zotero")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from Zotero")

	// ErrMissingCredentials indicates the library ID or API key is not configured.
	ErrMissingCredentials = errors.New("Zotero credentials not configured")
)

// APIError represents an error from the Zotero Web API.
type APIError struct {
	StatusCode int
	Code       string // "api_error" for HTTP failures, "write_failed" for rejected items
	Message    string
	ItemKey    string // Citation key of the item being written, if any
}

func (e *APIError) Error() string {
	if e.ItemKey != "" {
		return fmt.Sprintf("Zotero API error (status %d, code %s): %s (item: %s)", e.StatusCode, e.Code, e.Message, e.ItemKey)
	}
	return fmt.Sprintf("Zotero API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) || errors.Is(err, ErrMissingCredentials) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
