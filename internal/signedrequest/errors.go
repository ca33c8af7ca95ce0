package signedrequest

import (
	"errors"
	"fmt"
)

// Reason classifies why a signed request was rejected.
type Reason string

const (
	// ReasonMalformedToken means the token is not two base64url segments joined by a dot
	ReasonMalformedToken Reason = "MalformedToken"
	// ReasonUnsupportedAlgorithm means the payload claims an algorithm other than HMAC-SHA256
	ReasonUnsupportedAlgorithm Reason = "UnsupportedAlgorithm"
	// ReasonSignatureMismatch means the MAC did not match the payload segment
	ReasonSignatureMismatch Reason = "SignatureMismatch"
	// ReasonPayloadNotParseable means the payload decoded but is not a JSON object
	ReasonPayloadNotParseable Reason = "PayloadNotParseable"
)

// Sentinel errors, one per Reason, usable with errors.Is.
var (
	ErrMalformedToken       = errors.New("signed request is malformed")
	ErrUnsupportedAlgorithm = errors.New("signed request uses an unsupported algorithm")
	ErrSignatureMismatch    = errors.New("signed request signature mismatch")
	ErrPayloadNotParseable  = errors.New("signed request payload is not parseable")
)

var sentinels = map[Reason]error{
	ReasonMalformedToken:       ErrMalformedToken,
	ReasonUnsupportedAlgorithm: ErrUnsupportedAlgorithm,
	ReasonSignatureMismatch:    ErrSignatureMismatch,
	ReasonPayloadNotParseable:  ErrPayloadNotParseable,
}

// VerificationError is the failure half of a verification result. Detail is
// for logs only and must never be echoed to the remote caller.
type VerificationError struct {
	Reason Reason
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return sentinels[e.Reason].Error()
	}
	return fmt.Sprintf("%s: %s", sentinels[e.Reason], e.Detail)
}

// Unwrap exposes the sentinel error for the reason.
func (e *VerificationError) Unwrap() error {
	return sentinels[e.Reason]
}

func fail(reason Reason, format string, args ...interface{}) *VerificationError {
	return &VerificationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the Reason carried by err, or "" when err is not a verification failure.
func ReasonOf(err error) Reason {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}
