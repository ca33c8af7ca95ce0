// Package handlers exposes the gateway's HTTP surface: the canvas page, the
// deauthorization callback, the real-time update webhook and health.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"canvas-gateway/internal/canvas"
	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/deauth"
	"canvas-gateway/internal/session"
	"canvas-gateway/internal/webhook"
)

// CanvasFlow decides canvas requests. *canvas.Flow implements it.
type CanvasFlow interface {
	Decide(ctx context.Context, params url.Values) (canvas.Decision, error)
}

// DeauthHandler processes deauthorization callbacks. *deauth.Handler implements it.
type DeauthHandler interface {
	Handle(ctx context.Context, signedRequest string) (deauth.Result, error)
}

// EventReceiver verifies and dispatches webhook deliveries. *webhook.Dispatcher implements it.
type EventReceiver interface {
	ReceiveEvent(ctx context.Context, subscription string, rawBody []byte, signatureHeader string)
}

// HealthCheck reports the health of one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options carries the collaborators of Handlers.
type Options struct {
	Flow CanvasFlow
	// Deauth maps provider id to its handler; DefaultProvider serves /deauthorize.
	Deauth          map[string]DeauthHandler
	DefaultProvider string
	Receiver        EventReceiver
	VerifyTokens    map[string]string
	Sessions        *session.Manager
	Breakers        *circuitbreaker.Manager
	HealthChecks    []HealthCheck
	MaxBodyBytes    int64
	Logger          logging.Logger
}

// Handlers serves the gateway routes.
type Handlers struct {
	flow            CanvasFlow
	deauth          map[string]DeauthHandler
	defaultProvider string
	receiver        EventReceiver
	verifyTokens    map[string]string
	sessions        *session.Manager
	breakers        *circuitbreaker.Manager
	healthChecks    []HealthCheck
	maxBodyBytes    int64
	logger          logging.Logger
}

// New creates the handlers.
func New(opts Options) *Handlers {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Handlers{
		flow:            opts.Flow,
		deauth:          opts.Deauth,
		defaultProvider: opts.DefaultProvider,
		receiver:        opts.Receiver,
		verifyTokens:    opts.VerifyTokens,
		sessions:        opts.Sessions,
		breakers:        opts.Breakers,
		healthChecks:    opts.HealthChecks,
		maxBodyBytes:    opts.MaxBodyBytes,
		logger:          logging.OrGlobal(opts.Logger),
	}
}

// Interface guards for the production collaborators.
var (
	_ CanvasFlow    = (*canvas.Flow)(nil)
	_ DeauthHandler = (*deauth.Handler)(nil)
	_ EventReceiver = (*webhook.Dispatcher)(nil)
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseParams reads query and form parameters with the body bounded.
func (h *Handlers) parseParams(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.Form, nil
}
