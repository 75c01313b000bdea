package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a specific error type for categorization
type ErrorCode string

const (
	// Validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrMissingField     ErrorCode = "MISSING_FIELD"
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"

	// GitLab API errors
	ErrGitLabAPIFailed   ErrorCode = "GITLAB_API_FAILED"
	ErrGitLabAuth        ErrorCode = "GITLAB_AUTH_FAILED"
	ErrGitLabNotFound    ErrorCode = "GITLAB_NOT_FOUND"
	ErrGitLabRateLimit   ErrorCode = "GITLAB_RATE_LIMIT"
	ErrGitLabTimeout     ErrorCode = "GITLAB_TIMEOUT"
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	// Output errors
	ErrFileWriteFailed ErrorCode = "FILE_WRITE_FAILED"

	// System errors
	ErrConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// ErrorSeverity indicates the severity level of an error
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// AppError represents a structured application error with rich context
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Severity   ErrorSeverity          `json:"severity"`
	HTTPStatus int                    `json:"http_status"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Cause      error                  `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds contextual information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithProjectContext adds the project the error belongs to
func (e *AppError) WithProjectContext(projectID int) *AppError {
	return e.WithContext("project_id", projectID)
}

// WithMRContext adds MR-specific context to the error
func (e *AppError) WithMRContext(projectID, mrIID int) *AppError {
	return e.WithProjectContext(projectID).WithContext("mr_iid", mrIID)
}

// NewError creates a new AppError with the given code and message
func NewError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Severity:   getDefaultSeverity(code),
		HTTPStatus: getDefaultHTTPStatus(code),
		Timestamp:  time.Now(),
	}
}

// NewErrorWithCause creates a new AppError wrapping an existing error
func NewErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	appErr := NewError(code, message)
	appErr.Cause = cause
	return appErr
}

// NewConfigError reports a missing or invalid setting. Configuration errors are
// fatal and surface before any network call is made.
func NewConfigError(setting, reason string) *AppError {
	appErr := NewError(ErrConfigurationError, fmt.Sprintf("Invalid configuration for '%s'", setting))
	appErr.Details = reason
	return appErr
}

// NewValidationError creates a validation error with details
func NewValidationError(field, reason string) *AppError {
	return &AppError{
		Code:       ErrValidationFailed,
		Message:    fmt.Sprintf("Validation failed for field '%s'", field),
		Details:    reason,
		Severity:   SeverityLow,
		HTTPStatus: http.StatusBadRequest,
		Timestamp:  time.Now(),
	}
}

// NewGitLabError creates a GitLab API specific error from a non-2xx response
func NewGitLabError(operation string, statusCode int, responseBody string) *AppError {
	var code ErrorCode
	var severity ErrorSeverity

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = ErrGitLabAuth
		severity = SeverityHigh
	case http.StatusNotFound:
		code = ErrGitLabNotFound
		severity = SeverityMedium
	case http.StatusTooManyRequests:
		code = ErrGitLabRateLimit
		severity = SeverityMedium
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		code = ErrGitLabAPIFailed
		severity = SeverityHigh
	default:
		code = ErrGitLabAPIFailed
		severity = SeverityMedium
	}

	return &AppError{
		Code:       code,
		Message:    fmt.Sprintf("GitLab API %s failed", operation),
		Details:    fmt.Sprintf("HTTP %d: %s", statusCode, responseBody),
		Severity:   severity,
		HTTPStatus: getHTTPStatusForGitLabError(statusCode),
		Timestamp:  time.Now(),
		Context:    map[string]interface{}{"gitlab_status": statusCode},
	}
}

// NewMalformedResponseError reports a response body that could not be decoded
// into the structure the operation expects
func NewMalformedResponseError(operation string, cause error) *AppError {
	return NewErrorWithCause(ErrMalformedResponse,
		fmt.Sprintf("GitLab API %s returned an unexpected body", operation), cause)
}

// HasCode reports whether err is, or wraps, an AppError with the given code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// AsAppError finds the first AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func getDefaultSeverity(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrInvalidInput, ErrMissingField, ErrValidationFailed:
		return SeverityLow
	case ErrConfigurationError:
		return SeverityCritical
	case ErrGitLabAuth, ErrInternalServer, ErrMalformedResponse:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// getDefaultHTTPStatus returns the default HTTP status code for an error code
func getDefaultHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrInvalidInput, ErrMissingField, ErrValidationFailed:
		return http.StatusBadRequest
	case ErrGitLabAuth:
		return http.StatusUnauthorized
	case ErrGitLabNotFound:
		return http.StatusNotFound
	case ErrGitLabRateLimit:
		return http.StatusTooManyRequests
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// getHTTPStatusForGitLabError maps GitLab API errors to appropriate HTTP status
func getHTTPStatusForGitLabError(gitlabStatus int) int {
	switch gitlabStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
		return http.StatusServiceUnavailable // Don't expose auth issues
	case http.StatusNotFound:
		return http.StatusBadRequest // Invalid MR/project
	case http.StatusTooManyRequests:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
