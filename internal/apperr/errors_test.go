package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", BadRequest("x"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("x"), http.StatusUnauthorized},
		{"forbidden", Forbidden("x"), http.StatusForbidden},
		{"not found", NotFound("x"), http.StatusNotFound},
		{"duplicate surfaces as 400", Duplicate("x"), http.StatusBadRequest},
		{"internal", Internal("x", errors.New("boom")), http.StatusInternalServerError},
		{"unclassified", errors.New("driver: bad connection"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("login: %w", NotFound("no user")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Duplicate("User already exists"))
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFromHidesCause(t *testing.T) {
	e := From(errors.New("dial tcp 10.0.0.3:3306: i/o timeout"))
	assert.Equal(t, "internal server error", e.Message)
	assert.True(t, errors.Is(e, ErrInternal))
}
