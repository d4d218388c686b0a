package api

import (
	"errors"
	"net/http"

	"github.com/docsmith/docex-api/internal/extraction"
	"github.com/docsmith/docex-api/internal/store"
	"github.com/docsmith/docex-api/internal/task"
	"github.com/docsmith/docex-api/internal/upload"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Upload validation errors
	case errors.Is(err, upload.ErrUnsupportedMediaType),
		errors.Is(err, upload.ErrEmptyFile):
		return http.StatusBadRequest

	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Capacity errors
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	// Conflict errors
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message based
// on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, upload.ErrUnsupportedMediaType):
		return "Unsupported file type; only PDF and image uploads are accepted"

	case errors.Is(err, upload.ErrEmptyFile):
		return "Uploaded file is empty"

	case errors.Is(err, upload.ErrFileTooLarge):
		return "File exceeds the maximum allowed size"

	case errors.Is(err, store.ErrNotFound):
		return "Task not found"

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Server is busy, try again later"

	case errors.Is(err, store.ErrUnavailable):
		return "Task store is temporarily unavailable"

	case errors.Is(err, store.ErrAlreadyExists):
		return "Task already exists"

	case errors.Is(err, extraction.ErrContentBlocked):
		return "Document content was blocked by the extraction model"

	default:
		return "An unexpected error occurred"
	}
}
