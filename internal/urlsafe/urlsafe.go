// Package urlsafe implements the platform's URL-safe, unpadded base64 variant.
//
// Tokens on the wire use '-' and '_' in place of '+' and '/' and drop the
// trailing '=' padding. Decode reconstructs the padding instead of requiring
// it, so padded and unpadded forms of the same segment decode identically.
package urlsafe

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidEncoding is returned for input outside the URL-safe base64 alphabet
// or of an impossible length.
var ErrInvalidEncoding = errors.New("urlsafe: invalid base64url encoding")

var toStandard = strings.NewReplacer("-", "+", "_", "/")

// Decode decodes a URL-safe base64 string, with or without padding.
func Decode(s string) ([]byte, error) {
	// the std decoder silently skips CR and LF
	if strings.ContainsAny(s, "\r\n") {
		return nil, ErrInvalidEncoding
	}

	padded := toStandard.Replace(s)
	if padLen := (4 - len(padded)%4) % 4; padLen > 0 {
		padded += strings.Repeat("=", padLen)
	}

	out, err := base64.StdEncoding.DecodeString(padded)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	return out, nil
}

// Encode encodes b with the URL-safe alphabet and no padding.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
