// Package errors provides the structured error type used across Sentra.
//
// Every error that crosses a package boundary toward the HTTP layer or the
// CLI is a *SentraError so that callers can map it to a status code, log it
// with its context, and decide whether the operation can be retried.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeTooLarge   ErrorType = "too_large"
	ErrorTypeInternal   ErrorType = "internal"
)

// SentraError is a structured error type with context.
type SentraError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *SentraError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SentraError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SentraError) Is(target error) bool {
	var t *SentraError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SentraError) WithContext(key string, value interface{}) *SentraError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *SentraError) WithComponent(component string) *SentraError {
	e.Component = component

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SentraError {
	return &SentraError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *SentraError {
	return &SentraError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SentraError {
	return &SentraError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error. Network errors are recoverable:
// the same request may succeed against a healthy upstream.
func NewNetworkError(code, message string, cause error) *SentraError {
	return &SentraError{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SentraError {
	return &SentraError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *SentraError {
	return &SentraError{
		Type:        ErrorTypeNotFound,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewTooLargeError creates a payload-size error.
func NewTooLargeError(code, message string) *SentraError {
	return &SentraError{
		Type:        ErrorTypeTooLarge,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SentraError {
	return &SentraError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrap wraps err with additional context. An existing SentraError keeps its
// context and becomes the cause of the new one.
func Wrap(err error, errType ErrorType, code, message string) *SentraError {
	if err == nil {
		return nil
	}

	var se *SentraError
	if errors.As(err, &se) {
		return &SentraError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       se,
			Context:     se.Context,
			Component:   se.Component,
			Recoverable: se.Recoverable,
		}
	}

	return &SentraError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeNetwork,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SentraError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return TypeOf(err) == ErrorTypeSecurity
}

// IsValidationError checks if an error is a validation failure.
func IsValidationError(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsNotFound checks if an error reports a missing resource.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// TypeOf returns the ErrorType of the outermost SentraError in err's chain,
// or the empty string when there is none.
func TypeOf(err error) ErrorType {
	var se *SentraError
	if errors.As(err, &se) {
		return se.Type
	}

	return ""
}

// CodeOf returns the code of the outermost SentraError in err's chain.
func CodeOf(err error) string {
	var se *SentraError
	if errors.As(err, &se) {
		return se.Code
	}

	return ErrCodeInternalError
}

// HTTPStatus maps an error to the HTTP status code a handler should return.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	switch CodeOf(err) {
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	}

	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeSecurity:
		return http.StatusForbidden
	case ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level chosen by its type. Client mistakes are
// warnings; everything else is an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *SentraError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch se.Type {
	case ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeTooLarge:
		h.logger.Warn(ctx, se, "Request rejected",
			"type", se.Type,
			"code", se.Code)
	case ErrorTypeSecurity:
		h.logger.Error(ctx, se, "Security error occurred",
			"type", se.Type,
			"code", se.Code,
			"component", se.Component)
	default:
		h.logger.Error(ctx, se, "Error occurred",
			"type", se.Type,
			"code", se.Code,
			"component", se.Component)
	}
}

// Common error codes.
const (
	ErrCodeEmptySource       = "ERR_EMPTY_SOURCE"
	ErrCodeSourceTooLarge    = "ERR_SOURCE_TOO_LARGE"
	ErrCodeUnknownLanguage   = "ERR_UNKNOWN_LANGUAGE"
	ErrCodeUnknownAnalysis   = "ERR_UNKNOWN_ANALYSIS"
	ErrCodeUnknownFormat     = "ERR_UNKNOWN_FORMAT"
	ErrCodeInvalidRequest    = "ERR_INVALID_REQUEST"
	ErrCodeEmptyMessage      = "ERR_EMPTY_MESSAGE"
	ErrCodeMessageTooLong    = "ERR_MESSAGE_TOO_LONG"
	ErrCodeSessionNotFound   = "ERR_SESSION_NOT_FOUND"
	ErrCodeInvalidSessionID  = "ERR_INVALID_SESSION_ID"
	ErrCodeAgentUnavailable  = "ERR_AGENT_UNAVAILABLE"
	ErrCodeAgentFailed       = "ERR_AGENT_FAILED"
	ErrCodeInvalidOrigin     = "ERR_INVALID_ORIGIN"
	ErrCodeRateLimited       = "ERR_RATE_LIMITED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError     = "ERR_INTERNAL"
	ErrCodeValidationFailed  = "ERR_VALIDATION_FAILED"
	ErrCodeMethodNotAllowed  = "ERR_METHOD_NOT_ALLOWED"
	ErrCodeAnalysisCancelled = "ERR_ANALYSIS_CANCELLED"
)

// Helper functions for common errors

// ErrEmptySource reports a request without source text.
func ErrEmptySource() *SentraError {
	return NewValidationError(ErrCodeEmptySource, "source is required")
}

// ErrSourceTooLarge reports source text above the configured limit.
func ErrSourceTooLarge(size, limit int) *SentraError {
	return NewTooLargeError(
		ErrCodeSourceTooLarge,
		fmt.Sprintf("source too large: %d bytes (max %d)", size, limit),
	).WithContext("size", size).WithContext("limit", limit)
}

// ErrSessionNotFound reports an unknown session id.
func ErrSessionNotFound(id string) *SentraError {
	return NewNotFoundError(ErrCodeSessionNotFound, "session not found: "+id)
}

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *SentraError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}
