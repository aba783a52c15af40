package nimbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// APIError represents an error returned by the Nimbus API.
type APIError struct {
	Code   int    `json:"code"   yaml:"code"`
	Title  string `json:"title"  yaml:"title"`
	Detail string `json:"detail" yaml:"detail"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (code: %d)", e.Title, e.Detail, e.Code)
}

// ResponseError represents the error response body from the API.
type ResponseError struct {
	StatusCode int        `json:"-"      yaml:"-"`
	Errors     []APIError `json:"errors" yaml:"errors"`
}

// Error implements the error interface for ResponseError.
func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("unknown error (status: %d)", e.StatusCode)
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	return fmt.Sprintf("multiple errors: %v", e.Errors)
}

// FirstError returns the first error or nil.
func (e *ResponseError) FirstError() *APIError {
	if len(e.Errors) > 0 {
		return &e.Errors[0]
	}

	return nil
}

// Common API error codes.
const (
	ErrorCodeNotFound        = 1004
	ErrorCodeNotAuthorized   = 1001
	ErrorCodeTooManyRequests = 1015
)

// ConfigError reports a missing or invalid configuration field, detected
// eagerly at first client construction. It is fatal and never retried.
type ConfigError struct {
	Client string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Client == "" {
		return fmt.Sprintf("invalid configuration: field %q: %s", e.Field, e.Reason)
	}

	return fmt.Sprintf("invalid configuration for client %q: field %q: %s", e.Client, e.Field, e.Reason)
}

// OverloadError reports that the concurrency limiter's wait queue was full.
// It is a distinct error kind, not a transport failure, and is never retried.
type OverloadError struct {
	Client string
	// EstimatedWait is the limiter's best guess at how long the caller would
	// have had to wait for a permit. Zero when no estimate is available.
	EstimatedWait time.Duration
}

// Error implements the error interface.
func (e *OverloadError) Error() string {
	if e.EstimatedWait > 0 {
		return fmt.Sprintf("client %q overloaded: wait queue full (estimated wait %v)", e.Client, e.EstimatedWait)
	}

	return fmt.Sprintf("client %q overloaded: wait queue full", e.Client)
}

// Common static errors that can be wrapped with context.
var (
	ErrCircuitBreakerOpen     = errors.New("circuit breaker is open")
	ErrPaginationInconsistent = errors.New("pagination response claims more results but supplies no continuation")
	ErrNoMoreItems            = errors.New("no more items")
	ErrConfigRequired         = errors.New("config is required")
	ErrAPIEndpointRequired    = errors.New("API endpoint is required")
	ErrClientNotConfigured    = errors.New("client is not configured")
	ErrFactoryClosed          = errors.New("client factory is closed")
	ErrCacheDisabled          = errors.New("cache disabled")
	ErrCacheMiss              = errors.New("cache miss")
)

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	errResp := &ResponseError{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == 404
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Code == ErrorCodeNotFound
	}

	return false
}

// IsRateLimited checks if the error is a 429 response.
func IsRateLimited(err error) bool {
	errResp := &ResponseError{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == 429
	}

	return false
}

// IsOverload checks if the error is a concurrency limiter rejection.
func IsOverload(err error) bool {
	overload := &OverloadError{}

	return errors.As(err, &overload)
}

// IsCircuitOpen checks if the error indicates the circuit breaker short-circuited
// the request.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitBreakerOpen)
}

// IsConfigError checks if the error is a configuration error.
func IsConfigError(err error) bool {
	cfgErr := &ConfigError{}

	return errors.As(err, &cfgErr)
}

// ParseResponseError parses an error response body from JSON.
func ParseResponseError(statusCode int, data []byte) *ResponseError {
	errResp := &ResponseError{StatusCode: statusCode}

	if err := json.Unmarshal(data, errResp); err != nil || len(errResp.Errors) == 0 {
		errResp.Errors = []APIError{{
			Code:   statusCode,
			Title:  "HTTP Error",
			Detail: string(data),
		}}
	}

	return errResp
}
