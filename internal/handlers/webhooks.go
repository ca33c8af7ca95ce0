package handlers

import (
	"net/http"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/signature"
	"canvas-gateway/internal/webhook"

	"github.com/gorilla/mux"
)

// VerifySubscription handles GET /webhooks/{subscription}, the handshake the
// platform performs when a subscription is created. It always answers 200:
// with the challenge when the token matches, empty otherwise.
func (h *Handlers) VerifySubscription(w http.ResponseWriter, r *http.Request) {
	subscription := mux.Vars(r)["subscription"]
	ctx := logging.ContextWithSubscription(r.Context(), subscription)
	q := r.URL.Query()

	var challenge string
	if q.Get(webhook.ParamMode) == webhook.ModeSubscribe {
		challenge = webhook.VerifySubscription(subscription, q.Get(webhook.ParamChallenge), q.Get(webhook.ParamVerifyToken), h.verifyTokens)
	}

	if challenge == "" {
		h.logger.WithContext(ctx).Warn("Subscription handshake refused",
			logging.String("mode", q.Get(webhook.ParamMode)),
			logging.Secret("verify_token", q.Get(webhook.ParamVerifyToken)),
		)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// ReceiveEvent handles POST /webhooks/{subscription}. The platform gets 200
// and an empty body whatever happens; failures are only logged.
func (h *Handlers) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	subscription := mux.Vars(r)["subscription"]
	ctx := logging.ContextWithSubscription(r.Context(), subscription)

	body, err := signature.PreserveRequestBody(r, h.maxBodyBytes)
	if err != nil {
		h.logger.WithContext(ctx).Warn("Dropping unreadable webhook delivery", logging.Err(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	h.receiver.ReceiveEvent(ctx, subscription, body, signature.HeaderValue(r.Header))
	w.WriteHeader(http.StatusOK)
}
