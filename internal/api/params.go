package api

import (
	"errors"
	"fmt"
)

var (
	errMissingField = errors.New("missing field")
	errOutOfRange   = errors.New("out of range")
)

// fieldError names the body field that failed to parse.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return fmt.Sprintf("field %q: %v", e.field, e.err) }

func (e *fieldError) Unwrap() error { return e.err }

func errMissing(field string) error {
	return &fieldError{field: field, err: errMissingField}
}
