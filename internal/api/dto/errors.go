package dto

import "net/http"

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternalError = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeConflict      = "conflict"
	ErrCodeUnavailable   = "unavailable"
)

var statusByCode = map[string]int{
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeUnavailable:   http.StatusServiceUnavailable,
	ErrCodeInternalError: http.StatusInternalServerError,
}

// NewAPIError creates an APIError.
func NewAPIError(code, message string) APIError {
	return APIError{Code: code, Message: message}
}

func (e APIError) Error() string {
	return e.Code + ": " + e.Message
}

// HTTPStatus returns the status code that goes with the error code.
// Unknown codes map to 500.
func (e APIError) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NotFoundError(resource string) APIError {
	return NewAPIError(ErrCodeNotFound, resource+" not found")
}

func BadRequestError(message string) APIError {
	return NewAPIError(ErrCodeBadRequest, message)
}

// InternalError hides the cause; log it before answering.
func InternalError() APIError {
	return NewAPIError(ErrCodeInternalError, "an internal error occurred")
}

func ValidationError(message string) APIError {
	return NewAPIError(ErrCodeValidation, message)
}

func ConflictError(message string) APIError {
	return NewAPIError(ErrCodeConflict, message)
}

// UnavailableError reports a dependency that is down or not configured.
func UnavailableError(message string) APIError {
	return NewAPIError(ErrCodeUnavailable, message)
}
