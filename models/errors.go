package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and probe error classification.
const (
	ErrCodeTimeout      = "PROBE_TIMEOUT"
	ErrCodeUnreachable  = "TARGET_UNREACHABLE"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeBusy         = "RUNNER_BUSY"
	ErrCodeInternal     = "INTERNAL_ERROR"

	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"
)

// Sentinel errors for the failure modes probes branch on.
// Callers should use errors.Is() to check for these.
var (
	// ErrTimeout indicates the target did not answer within the deadline.
	ErrTimeout = errors.New("qaprobe: timeout")

	// ErrUnreachable indicates the connection could not be established
	// (DNS failure, connection refused, etc.).
	ErrUnreachable = errors.New("qaprobe: target unreachable")
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorDetail for endpoints without a richer body.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ProbeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ProbeError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel that corresponds to the code.
func (e *ProbeError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Code == ErrCodeTimeout
	case ErrUnreachable:
		return e.Code == ErrCodeUnreachable
	}
	return false
}

// NewProbeError creates a new ProbeError.
func NewProbeError(code, message string, err error) *ProbeError {
	return &ProbeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ProbeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
