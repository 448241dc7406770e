package apperr

import (
	"errors"
	"net/http"
)

// Sentinel errors for the operations exposed by the façade. Handlers map
// them onto HTTP statuses with HTTPStatus; components wrap them with
// fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrNotFound covers unknown conversations, messages and posts.
	ErrNotFound = errors.New("not found")
	// ErrNotAuthorized covers operations by a non-participant or a
	// non-owner (e.g. deleting someone else's status).
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidInput covers empty payloads and malformed arguments;
	// rejected before any mutation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExpired is a soft condition: acting on content past its TTL.
	// Callers may ignore it.
	ErrExpired = errors.New("expired")
)

// HTTPStatus maps an error to its response status. Unrecognized errors are
// internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
