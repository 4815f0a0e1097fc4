package ports

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-triage/internal/domain"
)

// Common infrastructure errors that can occur during detector execution
// and external service interactions.
var (
	// ErrDetectorPanicked indicates a detector panicked and was recovered.
	ErrDetectorPanicked = errors.New("detector panicked")

	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// DetectorError records why a detector abstained from an evaluation.
type DetectorError struct {
	// Detector is the name of the detector instance.
	Detector string

	// Source is the detector family.
	Source domain.DetectorSource

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface for DetectorError.
func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector error: detector=%s, source=%s, err=%v", e.Detector, e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *DetectorError) Unwrap() error { return e.Err }

// NewDetectorError creates a new DetectorError with the given details.
func NewDetectorError(detector string, source domain.DetectorSource, err error) *DetectorError {
	return &DetectorError{
		Detector: detector,
		Source:   source,
		Err:      err,
	}
}

// SearchError represents an error from the similarity search boundary.
// It includes the provider, operation, and any rate limit information.
type SearchError struct {
	// Provider is the embedding or search backend that failed.
	Provider string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error

	// RetryAfter indicates how long to wait before retrying, if applicable.
	RetryAfter *time.Duration
}

// Error implements the error interface for SearchError.
func (e *SearchError) Error() string {
	msg := fmt.Sprintf("search error: provider=%s, operation=%s, err=%v", e.Provider, e.Operation, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SearchError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *SearchError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewSearchError creates a new SearchError with the given details.
func NewSearchError(provider, operation string, err error) *SearchError {
	return &SearchError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
