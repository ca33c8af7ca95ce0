package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"canvas-gateway/internal/common/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "upstream-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "upstream-123", seen)
		assert.Equal(t, "upstream-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("replaced when unusable", func(t *testing.T) {
		for _, bad := range []string{"has space", strings.Repeat("a", 65), "tab\tid"} {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set(RequestIDHeader, bad)
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.NotEqual(t, bad, seen)
			assert.NotEmpty(t, seen)
		}
	})
}

func TestLogging_PassesThroughStatus(t *testing.T) {
	h := Logging(logging.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/canvas?signed_request=secret.value", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestParamNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/canvas?signed_request=abc.def&error=x&error=y", nil)
	assert.Equal(t, []string{"error", "signed_request"}, paramNames(req))
	assert.Nil(t, paramNames(httptest.NewRequest(http.MethodGet, "/canvas", nil)))
}

func TestRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := record(w)
	assert.Same(t, rec, record(rec))
	assert.False(t, rec.started())
	assert.Equal(t, http.StatusOK, rec.Status())

	_, err := rec.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = rec.Write([]byte(" world"))
	require.NoError(t, err)

	assert.True(t, rec.started())
	assert.Equal(t, 11, rec.bytes)
	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, "hello world", w.Body.String())
}

func TestRecover(t *testing.T) {
	h := Recover(logging.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecover_AfterResponseStarted(t *testing.T) {
	h := Recover(logging.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}
