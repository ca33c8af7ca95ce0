// Package errors defines the typed application errors shared by the gateway.
//
// Types decide two things: whether a failure stops the process at startup
// (config) and which status a handler answers with (HTTPStatus). The detail
// in Message, Cause and Context is for logs only and never reaches the
// platform.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	// ErrTypeConnection: a backing service (database, Redis, broker) failed.
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation: malformed input.
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig: bad configuration, fatal at startup.
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth: a signed request, signature or session did not verify.
	ErrTypeAuth ErrorType = "authentication"
	ErrTypeNotFound ErrorType = "not_found"
	ErrTypeInternal ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	ErrTypeConnection: http.StatusServiceUnavailable,
	ErrTypeValidation: http.StatusBadRequest,
	ErrTypeConfig:     http.StatusInternalServerError,
	ErrTypeAuth:       http.StatusForbidden,
	ErrTypeNotFound:   http.StatusNotFound,
	ErrTypeInternal:   http.StatusInternalServerError,
}

// AppError is a typed error with optional cause and log context.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error renders "type: message[: cause=..][: context={k=v, ...}]" with
// context keys sorted.
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&b, ": cause=%v", e.Cause)
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(": context={")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString("}")
	}

	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value for logs and returns e.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newError(t ErrorType, msg string, cause error) *AppError {
	return &AppError{Type: t, Message: msg, Cause: cause}
}

func ConnectionError(msg string, cause error) *AppError {
	return newError(ErrTypeConnection, msg, cause)
}

func ValidationError(msg string) *AppError {
	return newError(ErrTypeValidation, msg, nil)
}

func ConfigError(msg string) *AppError {
	return newError(ErrTypeConfig, msg, nil)
}

// AuthError wraps a verification failure. cause may be nil.
func AuthError(msg string, cause error) *AppError {
	return newError(ErrTypeAuth, msg, cause)
}

func NotFoundError(resource string) *AppError {
	return newError(ErrTypeNotFound, resource+" not found", nil)
}

func InternalError(msg string, cause error) *AppError {
	return newError(ErrTypeInternal, msg, cause)
}

// IsType reports whether err, or any error it wraps, is an AppError of errType.
func IsType(err error, errType ErrorType) bool {
	return GetType(err) == errType && err != nil
}

// GetType returns the type of the outermost AppError in err's chain.
// Plain errors count as internal; nil has no type.
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}

// HTTPStatus maps err to the status a handler answers with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := statusByType[GetType(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
