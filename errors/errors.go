package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ValidationError         ErrorType = "VALIDATION_ERROR"
	NotFoundError           ErrorType = "NOT_FOUND"
	AuthError               ErrorType = "AUTHENTICATION_ERROR"
	ServerError             ErrorType = "SERVER_ERROR"
	RateLimitError          ErrorType = "RATE_LIMIT_EXCEEDED"
	StartupFailureError     ErrorType = "STARTUP_FAILURE"
	RecognitionFailureError ErrorType = "RECOGNITION_FAILURE"
	ExtractionFailureError  ErrorType = "EXTRACTION_FAILURE"
	CacheUnavailableError   ErrorType = "CACHE_UNAVAILABLE"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the raw cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Raw
}

// GetHTTPStatus returns the status code to answer with, falling back to the
// default status of the error type.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return getHTTPStatus(e.Type)
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	httpStatus := getHTTPStatus(errType)
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// KindOf reports the ErrorType carried by err, or ServerError when err is not
// an AppError. A nil error has no kind.
func KindOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ServerError
}

// IsKind reports whether err carries the given ErrorType.
func IsKind(err error, kind ErrorType) bool {
	return err != nil && KindOf(err) == kind
}

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

func AuthenticationFailed(message string) *AppError {
	return &AppError{
		Type:       AuthError,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func RateLimitExceeded(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       RateLimitError,
		Message:    message,
		Detail:     fmt.Sprintf("retry after %d seconds", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// StartupFailure is the only fatal kind: the process must not accept traffic.
func StartupFailure(message string, err error) *AppError {
	appErr := &AppError{
		Type:       StartupFailureError,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Raw:        err,
	}
	if err != nil {
		appErr.Detail = err.Error()
	}
	return appErr
}

// RecognitionFailure marks a single job whose OCR step failed.
func RecognitionFailure(message string, err error) *AppError {
	appErr := &AppError{
		Type:       RecognitionFailureError,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Raw:        err,
	}
	if err != nil {
		appErr.Detail = err.Error()
	}
	return appErr
}

func ExtractionFailure(field string, err error) *AppError {
	return &AppError{
		Type:       ExtractionFailureError,
		Message:    fmt.Sprintf("field %s could not be extracted", field),
		Detail:     fmt.Sprint(err),
		HTTPStatus: http.StatusOK,
		Raw:        err,
	}
}

func CacheUnavailable(op string, err error) *AppError {
	return &AppError{
		Type:       CacheUnavailableError,
		Message:    fmt.Sprintf("cache %s failed", op),
		Detail:     fmt.Sprint(err),
		HTTPStatus: http.StatusOK,
		Raw:        err,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case AuthError:
		return http.StatusUnauthorized
	case RateLimitError:
		return http.StatusTooManyRequests
	case RecognitionFailureError:
		return http.StatusUnprocessableEntity
	case StartupFailureError:
		return http.StatusServiceUnavailable
	case ExtractionFailureError, CacheUnavailableError:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
