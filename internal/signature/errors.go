package signature

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBodyTooLarge is returned by PreserveRequestBody when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Reason classifies a rejected signature.
type Reason string

const (
	ReasonMissingHeader Reason = "missing signature header"
	ReasonUnknownScheme Reason = "unknown signature algorithm"
	ReasonMismatch      Reason = "signature mismatch"
)

// Error describes why a delivery's signature was rejected.
type Error struct {
	Reason Reason
	// Scheme is the recognised header prefix, e.g. "sha256=". Empty when the
	// header was missing or its prefix unknown.
	Scheme string
}

func (e *Error) Error() string {
	if e.Scheme == "" {
		return "signature: " + string(e.Reason)
	}
	return fmt.Sprintf("signature: %s (%s)", e.Reason, strings.TrimSuffix(e.Scheme, "="))
}

// ReasonOf returns the Reason carried by err, or "" for other errors.
func ReasonOf(err error) Reason {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}
