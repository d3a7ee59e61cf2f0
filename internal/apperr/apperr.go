// Package apperr classifies failures into the small set of kinds the HTTP
// layer knows how to answer.
//
// Lower layers return plain wrapped errors; services attach a Kind with New
// or Wrap, and the API boundary maps the Kind to a status code with StatusOf.
// Anything without a Kind is treated as a storage failure.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a coarse failure category.
type Kind int

// Failure kinds.
const (
	// Storage is any data-access failure. Details are logged, never returned to clients.
	Storage Kind = iota
	// Validation is a missing or malformed request field.
	Validation
	// Authentication is a missing or invalid session.
	Authentication
	// Authorization is a valid session acting on a resource it does not own.
	Authorization
	// NotFound is an unknown route or missing record.
	NotFound
	// Conflict is a duplicate email or resource name.
	Conflict
)

var kindNames = map[Kind]string{
	Storage:        "storage",
	Validation:     "validation",
	Authentication: "authentication",
	Authorization:  "authorization",
	NotFound:       "not_found",
	Conflict:       "conflict",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a failure with a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to err. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the outermost *Error in err's chain.
// Errors without one are Storage.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Storage
}

// MessageOf returns the client-safe message for err.
// Storage failures always get a generic message.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Storage && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Authentication, Authorization:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
