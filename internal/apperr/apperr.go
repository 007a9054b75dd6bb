// Package apperr defines the error kinds shared by the storage, service and
// API layers. Errors are created with a human-readable message and marked
// with one of the sentinel kinds, so callers test them with errors.Is and the
// HTTP layer maps them to status codes.
package apperr

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrAuth       = errors.New("authentication failed")
	ErrUpstream   = errors.New("upstream failure")
	ErrInternal   = errors.New("internal error")
)

func Validation(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func Conflict(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConflict)
}

func NotFound(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func Forbidden(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrForbidden)
}

func Auth(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrAuth)
}

// Upstream marks a failure of an external dependency such as an LLM provider.
func Upstream(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Mark(errors.Newf(format, args...), ErrUpstream)
	}
	return errors.Mark(errors.Wrapf(cause, format, args...), ErrUpstream)
}

// Internal wraps an unexpected error. Already-classified errors pass through
// unchanged so a NotFound from a lower layer keeps its kind.
func Internal(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Mark(errors.Newf(format, args...), ErrInternal)
	}
	if Classified(cause) {
		return cause
	}
	return errors.Mark(errors.Wrapf(cause, format, args...), ErrInternal)
}

// Classified reports whether err already carries one of the kinds above.
func Classified(err error) bool {
	return errors.IsAny(err, ErrValidation, ErrConflict, ErrNotFound, ErrForbidden, ErrAuth, ErrUpstream, ErrInternal)
}

// HTTPStatus maps an error kind to the status code returned by the API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client. Internal errors
// are replaced by a generic text; their details belong in the logs.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
