package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes registers every route on r. mw wraps the public platform callbacks,
// typically with rate limiting.
func (h *Handlers) Routes(r *mux.Router, mw ...mux.MiddlewareFunc) {
	callback := func(fn http.HandlerFunc) http.Handler {
		var handler http.Handler = fn
		for i := len(mw) - 1; i >= 0; i-- {
			handler = mw[i](handler)
		}
		return handler
	}

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.Handle("/canvas", callback(h.Canvas)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/canvas/", callback(h.Canvas)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/deauthorize", callback(h.Deauthorize)).Methods(http.MethodPost)
	r.Handle("/deauthorize/{provider}", callback(h.Deauthorize)).Methods(http.MethodPost)
	r.Handle("/webhooks/{subscription}", callback(h.VerifySubscription)).Methods(http.MethodGet)
	r.Handle("/webhooks/{subscription}", callback(h.ReceiveEvent)).Methods(http.MethodPost)

	if h.sessions != nil {
		r.Handle("/session", h.sessions.Require(http.HandlerFunc(h.Session))).Methods(http.MethodGet)
		r.Handle("/signout", h.sessions.Require(http.HandlerFunc(h.SignOut))).Methods(http.MethodPost)
	}
}
