// Package signature verifies the X-Hub-Signature headers the platform attaches
// to real-time update deliveries.
//
// The header value is an algorithm prefix followed by the lowercase hex HMAC
// of the raw request body, keyed with the application secret:
//
//	X-Hub-Signature:     sha1=<40 hex chars>
//	X-Hub-Signature-256: sha256=<64 hex chars>
//
// The MAC covers the exact bytes received. Callers must read the body once
// with PreserveRequestBody and verify those bytes before parsing them; a body
// that was decoded and re-serialized will not verify.
//
// # Usage
//
//	verifier, err := signature.NewVerifier(secret, logger)
//	if err != nil {
//	    return err
//	}
//
//	body, err := signature.PreserveRequestBody(r, maxBodyBytes)
//	if err != nil {
//	    return err
//	}
//
//	if err := verifier.Verify(body, signature.HeaderValue(r.Header)); err != nil {
//	    // drop the delivery
//	}
package signature
