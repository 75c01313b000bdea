package errors

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/redhat-data-and-ai/glmr/internal/logging"
)

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      ErrorCode              `json:"code"`
	Details   string                 `json:"details,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// Handler provides centralized error handling for HTTP responses
type Handler struct {
	// Include sensitive details in responses (dev mode)
	IncludeSensitiveDetails bool
}

// NewHandler creates a new error handler with production defaults
func NewHandler() *Handler {
	return &Handler{IncludeSensitiveDetails: false}
}

// NewDevelopmentHandler creates an error handler with verbose output
func NewDevelopmentHandler() *Handler {
	return &Handler{IncludeSensitiveDetails: true}
}

// HandleError processes an error and returns an appropriate HTTP response
func (h *Handler) HandleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	appErr := h.toAppError(err)

	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = c.Get("X-Correlation-ID")
	}

	h.logError(appErr, requestID, c)

	response := h.createErrorResponse(appErr, requestID)
	return c.Status(appErr.HTTPStatus).JSON(response)
}

// FiberErrorHandler creates a Fiber-compatible error handler
func (h *Handler) FiberErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return h.HandleError(c, err)
	}
}

// toAppError converts any error to an AppError
func (h *Handler) toAppError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		appErr := NewErrorWithCause(ErrInvalidInput, fiberErr.Message, err)
		appErr.HTTPStatus = fiberErr.Code
		return appErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrGitLabTimeout, "Request timeout", err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return NewErrorWithCause(ErrServiceUnavailable, "Service unavailable", err)
	case strings.Contains(errStr, "timeout"):
		return NewErrorWithCause(ErrGitLabTimeout, "Request timeout", err)
	default:
		return NewErrorWithCause(ErrInternalServer, "Internal server error", err)
	}
}

// createErrorResponse creates a standardized error response
func (h *Handler) createErrorResponse(appErr *AppError, requestID string) ErrorResponse {
	response := ErrorResponse{
		Error:     appErr.Message,
		Code:      appErr.Code,
		RequestID: requestID,
		Timestamp: appErr.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
	}

	if h.shouldIncludeDetails(appErr) {
		response.Details = appErr.Details
		response.Context = appErr.Context
	}

	if !h.IncludeSensitiveDetails {
		response = h.sanitizeResponse(response, appErr)
	}

	return response
}

// shouldIncludeDetails determines if error details should be included
func (h *Handler) shouldIncludeDetails(appErr *AppError) bool {
	// Always include details for client errors (4xx)
	if appErr.HTTPStatus >= 400 && appErr.HTTPStatus < 500 {
		return true
	}
	return h.IncludeSensitiveDetails || appErr.Severity == SeverityLow
}

// sanitizeResponse removes sensitive information from error responses
func (h *Handler) sanitizeResponse(response ErrorResponse, appErr *AppError) ErrorResponse {
	safeMessages := map[ErrorCode]string{
		ErrGitLabAuth:         "Unable to access GitLab API",
		ErrInternalServer:     "Internal server error",
		ErrConfigurationError: "Service configuration error",
	}

	if safeMsg, exists := safeMessages[appErr.Code]; exists {
		response.Error = safeMsg
		response.Details = ""
		response.Context = nil
	}

	return response
}

// logError logs the error with a level matching its severity
func (h *Handler) logError(appErr *AppError, requestID string, c *fiber.Ctx) {
	fields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("severity", string(appErr.Severity)),
		zap.Int("http_status", appErr.HTTPStatus),
	}

	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if c != nil {
		fields = append(fields,
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
	}

	for key, value := range appErr.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}

	switch appErr.Severity {
	case SeverityLow:
		logging.InfoFields(appErr.Message, fields...)
	case SeverityMedium:
		logging.WarnFields(appErr.Message, fields...)
	default:
		logging.ErrorFields(appErr.Message, fields...)
	}
}
