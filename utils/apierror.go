package utils

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// APIError is an error that is safe to show to the caller as-is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func BadRequest(message string) *APIError   { return NewAPIError(http.StatusBadRequest, message) }
func Unauthorized(message string) *APIError { return NewAPIError(http.StatusUnauthorized, message) }
func Forbidden(message string) *APIError    { return NewAPIError(http.StatusForbidden, message) }
func NotFound(message string) *APIError     { return NewAPIError(http.StatusNotFound, message) }
func NotAcceptable(message string) *APIError {
	return NewAPIError(http.StatusNotAcceptable, message)
}
func Conflict(message string) *APIError { return NewAPIError(http.StatusConflict, message) }

// ExpiredAccessToken tells the client to use its refresh token rather than
// log in again.
func ExpiredAccessToken() *APIError {
	return NewAPIError(http.StatusGone, "Access token expired. Please refresh token.")
}

func PayloadTooLarge(message string) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, message)
}

func UnsupportedMediaType(message string) *APIError {
	return NewAPIError(http.StatusUnsupportedMediaType, message)
}

const internalMessage = "Something went wrong!"

func Internal() *APIError { return NewAPIError(http.StatusInternalServerError, internalMessage) }

// AsAPIError resolves err to the error shown to the caller. Known store
// sentinels map onto the taxonomy; everything else collapses into Internal.
// The second result reports whether err was expected.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr, true
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("Resource not found"), true
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict("Resource already exists"), true
	default:
		return Internal(), false
	}
}
