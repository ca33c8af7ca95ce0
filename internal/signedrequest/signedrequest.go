// Package signedrequest decodes and verifies the platform's signed request
// tokens: base64url(HMAC-SHA256 signature) "." base64url(JSON payload).
//
// The MAC is computed over the payload segment exactly as it appears on the
// wire, before decoding. Verify never returns a payload unless the payload
// declares the HMAC-SHA256 algorithm and the signature matches.
package signedrequest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"strings"

	"canvas-gateway/internal/urlsafe"
)

// Algorithm is the only algorithm tag accepted in a payload.
const Algorithm = "HMAC-SHA256"

// Token is a signed request split into its two wire segments.
type Token struct {
	EncodedSignature string
	EncodedPayload   string
}

// Split separates raw into its signature and payload segments.
func Split(raw string) (Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 {
		return Token{}, fail(ReasonMalformedToken, "expected 2 segments, got %d", len(parts))
	}
	if parts[0] == "" || parts[1] == "" {
		return Token{}, fail(ReasonMalformedToken, "empty segment")
	}
	return Token{EncodedSignature: parts[0], EncodedPayload: parts[1]}, nil
}

// Verify decodes token and checks its signature against secret.
// On failure the returned error is a *VerificationError and the payload is nil.
func Verify(token string, secret []byte) (Payload, error) {
	tok, err := Split(token)
	if err != nil {
		return nil, err
	}

	sig, err := urlsafe.Decode(tok.EncodedSignature)
	if err != nil {
		return nil, fail(ReasonMalformedToken, "signature segment: %v", err)
	}
	raw, err := urlsafe.Decode(tok.EncodedPayload)
	if err != nil {
		return nil, fail(ReasonMalformedToken, "payload segment: %v", err)
	}

	payload, err := parsePayload(raw)
	if err != nil {
		return nil, fail(ReasonPayloadNotParseable, "%v", err)
	}

	algorithm, ok := payload["algorithm"].(string)
	if !ok {
		return nil, fail(ReasonUnsupportedAlgorithm, "algorithm field missing")
	}
	if algorithm != Algorithm {
		return nil, fail(ReasonUnsupportedAlgorithm, "algorithm %q", algorithm)
	}

	if !hmac.Equal(sig, mac(tok.EncodedPayload, secret)) {
		return nil, fail(ReasonSignatureMismatch, "")
	}

	return payload, nil
}

// Sign produces a signed request for payload, which must be a JSON object.
func Sign(payload []byte, secret []byte) string {
	encoded := urlsafe.Encode(payload)
	return urlsafe.Encode(mac(encoded, secret)) + "." + encoded
}

func mac(encodedPayload string, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(encodedPayload))
	return h.Sum(nil)
}

func parsePayload(raw []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	if dec.More() {
		return nil, errors.New("trailing data after payload object")
	}
	return payload, nil
}

// Verifier verifies signed requests against one application secret.
// It is safe for concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret. An empty secret is a configuration error.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("signedrequest: application secret is empty")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Verifier{secret: s}, nil
}

// Verify verifies token with the bound secret.
func (v *Verifier) Verify(token string) (Payload, error) {
	return Verify(token, v.secret)
}
