// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/session"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExposeErrorDetails controls whether unexpected errors carry their text.
var ExposeErrorDetails = true

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewUnprocessableError creates a 422 error for inputs that parse but cannot
// be processed together.
func NewUnprocessableError(code string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    code,
		Message: cause.Error(),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromDomainError maps the geotag error taxonomy onto HTTP responses.
func FromDomainError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, models.ErrNoTemporalOverlap):
		return NewUnprocessableError("NO_TEMPORAL_OVERLAP", err)
	case errors.Is(err, models.ErrUnsortedCorrections):
		return NewUnprocessableError("UNSORTED_CORRECTIONS", err)
	case errors.Is(err, models.ErrMissingColumn):
		return NewUnprocessableError("MISSING_COLUMN", err)
	case errors.Is(err, models.ErrMissingInput):
		return NewUnprocessableError("MISSING_INPUT", err)
	case errors.Is(err, models.ErrRunInProgress):
		return NewConflictError(err.Error())
	case errors.Is(err, models.ErrInvalidGap):
		return &APIError{Status: http.StatusBadRequest, Code: "INVALID_GAP", Message: err.Error()}
	case errors.Is(err, models.ErrSetNotFound):
		return &APIError{Status: http.StatusBadRequest, Code: "SET_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, models.ErrMalformedRow), errors.Is(err, models.ErrMalformedTimestamp):
		return NewBadRequestError("malformed input", err)
	case errors.Is(err, models.ErrFileNotFound), errors.Is(err, session.ErrSessionNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, session.ErrNoActiveRun):
		return NewConflictError(err.Error())
	}
	return NewInternalError("unexpected error", err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = FromDomainError(err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		if !ExposeErrorDetails {
			apiErr = &APIError{Status: apiErr.Status, Code: apiErr.Code, Message: apiErr.Message}
		}
	}

	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		c.Logger().Warnf("write error response: %v", err)
	}
}
