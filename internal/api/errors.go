// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/deliverable-studio/backend/internal/dashboard"
	"github.com/deliverable-studio/backend/internal/export"
	"github.com/deliverable-studio/backend/internal/gallery"
	"github.com/deliverable-studio/backend/internal/generate"
	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/deliverable-studio/backend/internal/layout"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIError represents a structured API error response
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

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

// NewCapacityError creates a 409 error for a batch that does not fit the gallery.
func NewCapacityError(capErr *gallery.CapacityError) *APIError {
	remaining := capErr.Remaining
	return &APIError{
		Status:    http.StatusConflict,
		Code:      "CAPACITY_EXCEEDED",
		Message:   capErr.Error(),
		Remaining: &remaining,
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

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// fromDomainError maps package sentinel errors onto the envelope. Anything
// unknown becomes a 500 carrying message.
func fromDomainError(message string, err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var capErr *gallery.CapacityError
	switch {
	case errors.As(err, &capErr):
		return NewCapacityError(capErr)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, intake.ErrWorkspaceNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "workspace not found", Details: err.Error()}
	case errors.Is(err, gallery.ErrNotFound), errors.Is(err, dashboard.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: message, Details: err.Error()}
	case errors.Is(err, gallery.ErrClosed):
		return &APIError{Status: http.StatusGone, Code: "GONE", Message: "workspace was closed", Details: err.Error()}
	case errors.Is(err, intake.ErrNoFiles),
		errors.Is(err, layout.ErrIndexOutOfRange),
		errors.Is(err, gallery.ErrInvalidOrder),
		errors.Is(err, session.ErrInvalidMode),
		errors.Is(err, generate.ErrEmptyBrief),
		errors.Is(err, dashboard.ErrInvalid),
		errors.Is(err, export.ErrUnknownFormat):
		return NewBadRequestError(message, err)
	case errors.Is(err, export.ErrRegionNotFound):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "NOTHING_TO_EXPORT", Message: message, Details: err.Error()}
	case errors.Is(err, intake.ErrShutdown):
		return NewServiceUnavailableError("server is shutting down")
	}
	return NewInternalError(message, err)
}

// NewErrorHandler returns the Echo error handler. Details of unexpected
// errors are only exposed when verbose is set.
// Usage: e.HTTPErrorHandler = api.NewErrorHandler(logger, false)
func NewErrorHandler(logger *zap.Logger, verbose bool) echo.HTTPErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(err error, c echo.Context) {
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
			apiErr = &APIError{
				Status:  http.StatusInternalServerError,
				Code:    "UNKNOWN_ERROR",
				Message: "An unexpected error occurred",
			}
			if verbose {
				apiErr.Details = err.Error()
			}
		}

		if apiErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
