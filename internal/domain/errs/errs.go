// Package errs defines the error kinds shared by the store, the import pipeline,
// the stats engine and the HTTP boundary.
//
// Components wrap a kind with fmt.Errorf("%w: ...", errs.ErrNotFound) and callers
// classify with errors.Is or HTTPStatus.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound means the requested aggregate has no underlying data.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks malformed client input: a bad request parameter or an
	// unreadable CSV stream.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStore wraps I/O or transactional failures talking to the price store.
	ErrStore = errors.New("store failure")
)

// NotFound returns an ErrNotFound carrying a human-readable message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidInput returns an ErrInvalidInput carrying a human-readable message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Store wraps a driver error as ErrStore, tagging it with the failed operation.
// A nil err yields nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// HTTPStatus maps an error kind to its response code. Unclassified errors are 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
