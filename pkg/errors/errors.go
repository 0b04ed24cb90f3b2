// Package errors provides structured error handling for the application
// Following enterprise patterns for error management and observability
package errors

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

// Error codes. Transport-generic codes first, then the planning pipeline's
// own taxonomy.
const (
	// Client errors (4xx)
	CodeBadRequest       ErrorCode = "BAD_REQUEST"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"

	// Server errors (5xx)
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	CodeConfig             ErrorCode = "CONFIG"
	CodeUpstream5xx        ErrorCode = "UPSTREAM_5XX"
	CodeUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	CodeNetwork            ErrorCode = "NETWORK"

	// Pipeline errors
	CodeBlueprintInvalid    ErrorCode = "BLUEPRINT_INVALID"
	CodeMacroInfeasible     ErrorCode = "MACRO_INFEASIBLE"
	CodeFinalMacroMismatch  ErrorCode = "FINAL_MACRO_MISMATCH"
	CodeUncaught            ErrorCode = "UNCAUGHT"
	CodeNoCID               ErrorCode = "NO_CID"
	CodeNutritionNotFound   ErrorCode = "NUTRITION_NOT_FOUND"
	CodeFingerprintMismatch ErrorCode = "FINGERPRINT_MISMATCH"

	// Contract hard-cap verdicts
	CodeCarbsTooLow    ErrorCode = "CARBS_TOO_LOW"
	CodeProteinTooHigh ErrorCode = "PROTEIN_TOO_HIGH"
	CodeFatTooHigh     ErrorCode = "FAT_TOO_HIGH"
)

// AppError represents an application error with structured information
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeBadRequest, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound, CodeNutritionNotFound:
		return http.StatusNotFound
	case CodeNoCID:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstream5xx, CodeNetwork, CodeBlueprintInvalid:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the error kind is worth retrying upstream.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case CodeUpstream5xx, CodeUpstreamTimeout, CodeNetwork, CodeRateLimited:
		return true
	default:
		return false
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StackTrace: getStackTrace(),
	}
}

// Predefined error constructors for common scenarios

// NewBadRequestError creates a bad request error
func NewBadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, message, "")
}

// NewValidationError creates a validation error
func NewValidationError(details string) *AppError {
	return NewAppError(CodeValidationFailed, "Validation failed", details)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return NewAppError(CodeNotFound, message, "")
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewAppError(CodeInternal, message, "")
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *AppError {
	return NewAppError(
		CodeDatabaseError,
		"Database operation failed",
		fmt.Sprintf("Failed to %s", operation),
	).WithCause(cause)
}

// NewConfigError reports missing or invalid configuration. Fatal at startup
// or on first use, never retried.
func NewConfigError(key string) *AppError {
	return NewAppError(
		CodeConfig,
		"Configuration error",
		fmt.Sprintf("Missing or invalid configuration: %s", key),
	).WithMetadata("key", key)
}

// Upstream error constructors. Every outbound client maps transport
// failures through these so callers can separate fatal from retryable.

// NewRateLimitedError reports an exhausted token bucket or upstream 429.
func NewRateLimitedError(source string, waitMS int64) *AppError {
	return NewAppError(
		CodeRateLimited,
		"Rate limited",
		fmt.Sprintf("Request budget for %s exhausted", source),
	).WithMetadata("source", source).WithMetadata("bucket_wait_ms", waitMS)
}

// NewUpstreamError reports a 5xx from an external service.
func NewUpstreamError(source string, status int, cause error) *AppError {
	return NewAppError(
		CodeUpstream5xx,
		"Upstream service error",
		fmt.Sprintf("%s returned status %d", source, status),
	).WithMetadata("source", source).WithMetadata("status", status).WithCause(cause)
}

// NewUpstreamTimeoutError reports an outbound call exceeding its deadline.
func NewUpstreamTimeoutError(source string, cause error) *AppError {
	return NewAppError(
		CodeUpstreamTimeout,
		"Upstream timeout",
		fmt.Sprintf("%s did not respond in time", source),
	).WithMetadata("source", source).WithCause(cause)
}

// NewNetworkError reports connection-level failures (reset, DNS soft-fail).
func NewNetworkError(source string, cause error) *AppError {
	return NewAppError(
		CodeNetwork,
		"Network error",
		fmt.Sprintf("Failed to reach %s", source),
	).WithMetadata("source", source).WithCause(cause)
}

// Pipeline error constructors

// NewBlueprintInvalidError reports a structurally invalid meal sketch.
// The path pinpoints the offending field, e.g. "days[0].meals[2].items".
func NewBlueprintInvalidError(path, details string) *AppError {
	return NewAppError(
		CodeBlueprintInvalid,
		"Meal blueprint is invalid",
		details,
	).WithMetadata("path", path)
}

// NewMacroInfeasibleError reports that the solver, booster retry and min_g
// fallback all failed to reach the contract.
func NewMacroInfeasibleError(details string) *AppError {
	return NewAppError(CodeMacroInfeasible, "Macro targets infeasible", details)
}

// NewFinalMacroMismatchError reports a ledger that violates the contract
// regardless of what the solver claimed.
func NewFinalMacroMismatchError(details string) *AppError {
	return NewAppError(CodeFinalMacroMismatch, "Final macros violate contract", details)
}

// NewNoCIDError reports an ingredient that could not be mapped to the
// canonical registry.
func NewNoCIDError(name string) *AppError {
	return NewAppError(
		CodeNoCID,
		"Unknown ingredient",
		fmt.Sprintf("No canonical entry matches %q", name),
	).WithMetadata("name", name)
}

// NewNutritionNotFoundError reports an all-source nutrition miss.
func NewNutritionNotFoundError(key string) *AppError {
	return NewAppError(
		CodeNutritionNotFound,
		"Nutrition data not found",
		fmt.Sprintf("No source resolved nutrition for %q", key),
	).WithMetadata("key", key)
}

// NewFingerprintMismatchError reports nutrition data too far from the
// canonical expectation for its CID.
func NewFingerprintMismatchError(cid string, details string) *AppError {
	return NewAppError(
		CodeFingerprintMismatch,
		"Nutrition fingerprint mismatch",
		details,
	).WithMetadata("cid", cid)
}

// NewUncaughtError wraps a panic or unclassified failure at the pipeline
// boundary.
func NewUncaughtError(cause error) *AppError {
	return NewAppError(CodeUncaught, "Uncaught pipeline failure", "").WithCause(cause)
}

// Utility functions

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternal
}

// getStackTrace captures the current stack trace
func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "pkg/errors") {
			builder.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return builder.String()
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Tag     string      `json:"tag"`
	Message string      `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	if len(v) == 1 {
		return v[0].Message
	}

	var messages []string
	for _, err := range v {
		messages = append(messages, err.Message)
	}

	return strings.Join(messages, "; ")
}

// NewValidationErrors creates validation errors from validator errors
func NewValidationErrors(errors []ValidationError) *AppError {
	validationErrs := ValidationErrors(errors)

	return NewAppError(
		CodeValidationFailed,
		"Validation failed",
		validationErrs.Error(),
	).WithMetadata("validation_errors", validationErrs)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Metadata:  err.Metadata,
			RequestID: requestID,
			Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
}
