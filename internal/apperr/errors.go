// Package apperr defines the error taxonomy shared by services, middleware
// and handlers. Every error that reaches the HTTP boundary carries a status
// code and a client-facing message. The Kind sentinels allow callers to
// branch with errors.Is without caring about the message.
package apperr

import (
	"errors"
	"net/http"
)

// Kind sentinels. Handlers translate them into status codes via Status().
var (
	// ErrBadRequest is returned for malformed or missing input and for an
	// invalid refresh token.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is returned when credentials do not match.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when a token, role or ownership check fails.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when no user or resource matches.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key (mail, restaurant name) is
	// already taken. It is surfaced as 400, not 409.
	ErrDuplicate = errors.New("duplicate")

	// ErrInternal covers signing failures and downstream timeouts.
	ErrInternal = errors.New("internal error")
)

var statusByKind = map[error]int{
	ErrBadRequest:   http.StatusBadRequest,
	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,
	ErrNotFound:     http.StatusNotFound,
	ErrDuplicate:    http.StatusBadRequest,
	ErrInternal:     http.StatusInternalServerError,
}

// Error is a classified error with a message safe to show to clients.
type Error struct {
	Kind    error
	Message string
	Err     error // underlying cause, never rendered
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is matches the Kind sentinel so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func newErr(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func BadRequest(msg string) *Error   { return newErr(ErrBadRequest, msg, nil) }
func Unauthorized(msg string) *Error { return newErr(ErrUnauthorized, msg, nil) }
func Forbidden(msg string) *Error    { return newErr(ErrForbidden, msg, nil) }
func NotFound(msg string) *Error     { return newErr(ErrNotFound, msg, nil) }
func Duplicate(msg string) *Error    { return newErr(ErrDuplicate, msg, nil) }

// Internal wraps cause; the message is the only part clients see.
func Internal(msg string, cause error) *Error { return newErr(ErrInternal, msg, cause) }

// From classifies any error. Unclassified errors become ErrInternal with a
// generic message so driver or network details never leak.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal server error", err)
}

// StatusOf is a shorthand for From(err).Status().
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status()
}
