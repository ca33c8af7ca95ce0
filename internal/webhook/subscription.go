package webhook

import "crypto/subtle"

// Handshake query parameters sent by the platform when a subscription is created.
const (
	ParamMode        = "hub.mode"
	ParamChallenge   = "hub.challenge"
	ParamVerifyToken = "hub.verify_token"

	ModeSubscribe = "subscribe"
)

// VerifySubscription answers the subscription handshake. It returns challenge
// when tokens maps subscription to verifyToken, and "" otherwise.
//
// The handshake is authenticated only by the shared verify token; it never
// goes through HMAC verification.
func VerifySubscription(subscription, challenge, verifyToken string, tokens map[string]string) string {
	expected, ok := tokens[subscription]
	if !ok || expected == "" {
		return ""
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(verifyToken)) != 1 {
		return ""
	}
	return challenge
}
