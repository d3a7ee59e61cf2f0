package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: New(Validation, "missing name"), want: http.StatusBadRequest},
		{name: "authentication", err: New(Authentication, "not logged in"), want: http.StatusUnauthorized},
		{name: "authorization", err: New(Authorization, "not owner"), want: http.StatusUnauthorized},
		{name: "not found", err: New(NotFound, "no user"), want: http.StatusNotFound},
		{name: "conflict", err: New(Conflict, "duplicate"), want: http.StatusConflict},
		{name: "storage", err: Wrap(Storage, errors.New("disk"), "select"), want: http.StatusInternalServerError},
		{name: "untyped", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "wrapped kind", err: fmt.Errorf("handler: %w", New(Conflict, "dup")), want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestMessageOf_HidesStorageDetail(t *testing.T) {
	err := Wrap(Storage, errors.New("no such table: Users"), "selecting user")
	assert.Equal(t, "Internal server error", MessageOf(err))
	assert.Equal(t, "Internal server error", MessageOf(errors.New("raw")))
	assert.Equal(t, "User already exists", MessageOf(New(Conflict, "User already exists")))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(NotFound, nil, "ignored"))

	cause := errors.New("cause")
	err := Wrap(Validation, cause, "bad field")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad field: cause", err.Error())
	assert.True(t, Is(err, Validation))
	assert.False(t, Is(err, Conflict))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
