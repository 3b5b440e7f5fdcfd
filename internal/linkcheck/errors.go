package linkcheck

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for the ways a check or page visit can fail
const (
	ErrCodeNetworkError      = "NETWORK_ERROR"
	ErrCodeTimeoutError      = "TIMEOUT_ERROR"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeExtractionFailure = "EXTRACTION_FAILURE"
)

// ErrCancelled is returned when a check is not dispatched because the crawl
// was cancelled. It is a control signal and never ends up on a Link.
var ErrCancelled = errors.New("check cancelled")

// CheckError represents a structured failure with the URL it concerns
type CheckError struct {
	Code    string
	Message string
	URL     string
	Cause   error
}

// Error implements the error interface
func (e *CheckError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *CheckError) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is a CheckError with the given code.
func IsCode(err error, code string) bool {
	var ce *CheckError
	return errors.As(err, &ce) && ce.Code == code
}

func NewNetworkError(url string, cause error) *CheckError {
	return &CheckError{Code: ErrCodeNetworkError, Message: "network error", URL: url, Cause: cause}
}

func NewTimeoutError(url string, timeout time.Duration) *CheckError {
	return &CheckError{
		Code:    ErrCodeTimeoutError,
		Message: fmt.Sprintf("request timed out after %v", timeout),
		URL:     url,
	}
}

func NewInvalidURLError(url string, cause error) *CheckError {
	return &CheckError{Code: ErrCodeInvalidURL, Message: "invalid URL", URL: url, Cause: cause}
}

func NewExtractionError(url string, cause error) *CheckError {
	return &CheckError{Code: ErrCodeExtractionFailure, Message: "page could not be scanned", URL: url, Cause: cause}
}
