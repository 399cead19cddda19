// Package apperror defines the user-facing failure taxonomy of the auth
// flows.  Every expected failure is an *AppError carrying a stable code,
// the HTTP status it maps to and a message that is safe to show a client.
package apperror

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Code is a stable, enumerable error identifier returned to clients.
type Code string

const (
	CodeRateLimitExceeded      Code = "RATE_LIMIT_EXCEEDED"
	CodeEmailRateLimitExceeded Code = "EMAIL_RATE_LIMIT_EXCEEDED"
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeInvalidRequest         Code = "INVALID_REQUEST"
	CodeUserExists             Code = "USER_EXISTS"
	CodeInvalidCredentials     Code = "INVALID_CREDENTIALS"
	CodeNoAuthCookie           Code = "NO_AUTH_COOKIE"
	CodeNoAuthToken            Code = "NO_AUTH_TOKEN"
	CodeInvalidToken           Code = "INVALID_TOKEN"
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeUserNotFound           Code = "USER_NOT_FOUND"
	CodeUserDeactivated        Code = "USER_DEACTIVATED"
	CodeInternal               Code = "INTERNAL_ERROR"

	// Transport-level failures raised by the router rather than the flows.
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge  Code = "PAYLOAD_TOO_LARGE"
)

// HTTPStatusMap maps error codes to HTTP status codes.
var HTTPStatusMap = map[Code]int{
	CodeRateLimitExceeded:      http.StatusTooManyRequests,
	CodeEmailRateLimitExceeded: http.StatusTooManyRequests,
	CodeValidation:             http.StatusBadRequest,
	CodeInvalidRequest:         http.StatusBadRequest,
	CodeUserExists:             http.StatusConflict,
	CodeInvalidCredentials:     http.StatusUnauthorized,
	CodeNoAuthCookie:           http.StatusUnauthorized,
	CodeNoAuthToken:            http.StatusUnauthorized,
	CodeInvalidToken:           http.StatusUnauthorized,
	CodeSessionNotFound:        http.StatusUnauthorized,
	CodeUserNotFound:           http.StatusNotFound,
	CodeUserDeactivated:        http.StatusForbidden,
	CodeInternal:               http.StatusInternalServerError,
	CodeNotFound:               http.StatusNotFound,
	CodeMethodNotAllowed:       http.StatusMethodNotAllowed,
	CodePayloadTooLarge:        http.StatusRequestEntityTooLarge,
}

// AppError is an expected, caller-recoverable failure.
type AppError struct {
	Code       Code
	Message    string
	Details    []string
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	if status, ok := HTTPStatusMap[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *AppError) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// New creates an AppError with the given code and client message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func RateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       CodeRateLimitExceeded,
		Message:    "Too many attempts, please try again later",
		RetryAfter: retryAfter,
	}
}

func EmailRateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       CodeEmailRateLimitExceeded,
		Message:    "Too many attempts for this account, please try again later",
		RetryAfter: retryAfter,
	}
}

func Validation(details []string) *AppError {
	return &AppError{Code: CodeValidation, Message: "Invalid input", Details: details}
}

func InvalidRequest() *AppError {
	return New(CodeInvalidRequest, "Invalid request body")
}

func UserExists() *AppError {
	return New(CodeUserExists, "An account with this email already exists")
}

func InvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "Invalid email or password")
}

func NoAuthCookie() *AppError {
	return New(CodeNoAuthCookie, "Authentication required")
}

func NoAuthToken() *AppError {
	return New(CodeNoAuthToken, "Authentication required")
}

func InvalidToken() *AppError {
	return New(CodeInvalidToken, "Authentication expired")
}

func SessionNotFound() *AppError {
	return New(CodeSessionNotFound, "Authentication expired")
}

func UserNotFound() *AppError {
	return New(CodeUserNotFound, "Authentication required")
}

func UserDeactivated() *AppError {
	return New(CodeUserDeactivated, "Account is disabled")
}

// FromStatus maps a bare HTTP status, as raised by the router, onto the
// taxonomy.
func FromStatus(status int, cause error) *AppError {
	switch {
	case status == http.StatusNotFound:
		return New(CodeNotFound, "Resource not found")
	case status == http.StatusMethodNotAllowed:
		return New(CodeMethodNotAllowed, "Method not allowed")
	case status == http.StatusRequestEntityTooLarge:
		return New(CodePayloadTooLarge, "Request body too large")
	case status >= 400 && status < 500:
		return InvalidRequest()
	default:
		return Internal(cause)
	}
}

// Internal wraps an unexpected failure.  The cause is kept for logging and
// never rendered to the client.
func Internal(cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Cause: cause}
}
