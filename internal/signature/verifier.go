package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"net/http"
	"strings"

	"canvas-gateway/internal/common/logging"
)

const (
	// HeaderSHA1 carries the HMAC-SHA1 signature of the body
	HeaderSHA1 = "X-Hub-Signature"
	// HeaderSHA256 carries the HMAC-SHA256 signature of the body
	HeaderSHA256 = "X-Hub-Signature-256"
)

// Scheme is one accepted "<prefix><hex mac>" signature format.
type Scheme struct {
	Prefix string
	New    func() hash.Hash
}

var schemes = []Scheme{
	{Prefix: "sha1=", New: sha1.New},
	{Prefix: "sha256=", New: sha256.New},
}

func schemeFor(headerValue string) (Scheme, bool) {
	for _, s := range schemes {
		if strings.HasPrefix(headerValue, s.Prefix) {
			return s, true
		}
	}
	return Scheme{}, false
}

// Compute returns the header value the platform would send for body.
func (s Scheme) Compute(body, secret []byte) string {
	h := hmac.New(s.New, secret)
	h.Write(body)
	return s.Prefix + hex.EncodeToString(h.Sum(nil))
}

// SignSHA1 returns the X-Hub-Signature value for body.
func SignSHA1(body, secret []byte) string {
	return schemes[0].Compute(body, secret)
}

// SignSHA256 returns the X-Hub-Signature-256 value for body.
func SignSHA256(body, secret []byte) string {
	return schemes[1].Compute(body, secret)
}

// VerifyHubSignature reports whether header is a valid signature of rawBody.
// An empty header, an unknown algorithm prefix or a mismatch all yield false.
// The hex digest is compared case-sensitively in constant time.
func VerifyHubSignature(rawBody []byte, header string, secret []byte) bool {
	return verify(rawBody, header, secret) == nil
}

func verify(rawBody []byte, header string, secret []byte) error {
	if header == "" {
		return &Error{Reason: ReasonMissingHeader}
	}

	scheme, ok := schemeFor(header)
	if !ok {
		return &Error{Reason: ReasonUnknownScheme}
	}

	expected := scheme.Compute(rawBody, secret)
	if !hmac.Equal([]byte(header), []byte(expected)) {
		return &Error{Reason: ReasonMismatch, Scheme: scheme.Prefix}
	}
	return nil
}

// HeaderValue returns the signature header to verify, preferring
// X-Hub-Signature-256 when the request carries it.
func HeaderValue(h http.Header) string {
	if v := h.Get(HeaderSHA256); v != "" {
		return v
	}
	return h.Get(HeaderSHA1)
}

// Verifier handles webhook signature verification for one application secret
type Verifier struct {
	secret []byte
	logger logging.Logger
}

// NewVerifier creates a new signature verifier
func NewVerifier(secret []byte, logger logging.Logger) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("signature: application secret is empty")
	}

	s := make([]byte, len(secret))
	copy(s, secret)

	return &Verifier{
		secret: s,
		logger: logging.OrGlobal(logger),
	}, nil
}

// Verify checks header against the raw body bytes
func (v *Verifier) Verify(rawBody []byte, header string) error {
	if err := verify(rawBody, header, v.secret); err != nil {
		v.logger.Debug("Signature verification failed",
			logging.String("reason", string(ReasonOf(err))),
			logging.Int("body_bytes", len(rawBody)),
		)
		return err
	}
	return nil
}

// VerifyRequest verifies the signature headers of r against body
func (v *Verifier) VerifyRequest(r *http.Request, body []byte) bool {
	return v.Verify(body, HeaderValue(r.Header)) == nil
}

// PreserveRequestBody reads the request body, up to maxBytes when positive,
// and replaces it with a reader over the same bytes.
func PreserveRequestBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	reader := io.Reader(r.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(r.Body, maxBytes+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, ErrBodyTooLarge
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
