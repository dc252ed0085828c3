package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v62/github"
)

// APIError represents a non-success GitHub API response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsRateLimited reports whether err was caused by an exhausted quota.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	var rlErr *github.RateLimitError
	return errors.As(err, &rlErr)
}

// wrapError converts go-github errors to our error types.
func wrapError(err error, operation string) error {
	var rlErr *github.RateLimitError
	if errors.As(err, &rlErr) {
		return fmt.Errorf("%s: %w", operation, err)
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	return fmt.Errorf("%s: %w", operation, err)
}
