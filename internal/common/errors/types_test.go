package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "basic error",
			appError: ConfigError("APP_SECRET is required"),
			want:     "config: APP_SECRET is required",
		},
		{
			name:     "error with cause",
			appError: ConnectionError("redis unavailable", errors.New("dial tcp: refused")),
			want:     "connection: redis unavailable: cause=dial tcp: refused",
		},
		{
			name: "context keys are sorted",
			appError: ValidationError("bad parameter").
				WithContext("param", "signed_request").
				WithContext("length", 3),
			want: "validation: bad parameter: context={length=3, param=signed_request}",
		},
		{
			name:     "not found names the resource",
			appError: NotFoundError("connection"),
			want:     "not_found: connection not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("signature mismatch")
	err := AuthError("signed request rejected", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
	assert.Nil(t, ConfigError("x").Unwrap())
}

func TestIsTypeAndGetType(t *testing.T) {
	authErr := AuthError("rejected", nil)
	wrapped := fmt.Errorf("canvas: %w", authErr)

	assert.True(t, IsType(authErr, ErrTypeAuth))
	assert.True(t, IsType(wrapped, ErrTypeAuth))
	assert.False(t, IsType(wrapped, ErrTypeConfig))
	assert.False(t, IsType(nil, ErrTypeAuth))
	assert.False(t, IsType(errors.New("plain"), ErrTypeAuth))
	assert.True(t, IsType(errors.New("plain"), ErrTypeInternal))

	assert.Equal(t, ErrTypeAuth, GetType(wrapped))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{AuthError("signed request verification failed", nil), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", ValidationError("bad form")), http.StatusBadRequest},
		{NotFoundError("provider"), http.StatusNotFound},
		{ConnectionError("redis down", nil), http.StatusServiceUnavailable},
		{ConfigError("missing secret"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{&AppError{Type: "unknown"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
