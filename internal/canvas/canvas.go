// Package canvas decides what to do with a request to the app's canvas page.
//
// Each request is classified on its own from the signals it carries:
//
//	no signed_request, no error    → RedirectToCanvasPage
//	error                          → RedirectToDeclinePage
//	signed_request, no oauth_token → RedirectToAuthorizationDialog
//	signed_request with oauth_token → CompleteSignIn
//
// A signed_request that fails verification is returned as an error and never
// falls back to any of the redirects.
package canvas

import (
	"context"
	"net/url"
	"strings"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/connect"
	"canvas-gateway/internal/signedrequest"
)

// Request parameter and payload keys.
const (
	ParamSignedRequest    = "signed_request"
	ParamError            = "error"
	ParamErrorReason      = "error_reason"
	ParamErrorDescription = "error_description"

	fieldAccessToken = "oauth_token"
	fieldUserID      = "user_id"
	fieldExpires     = "expires"
)

// Kind identifies the decision variant.
type Kind int

const (
	RedirectToCanvasPage Kind = iota + 1
	RedirectToAuthorizationDialog
	CompleteSignIn
	RedirectToDeclinePage
)

func (k Kind) String() string {
	switch k {
	case RedirectToCanvasPage:
		return "redirect_to_canvas_page"
	case RedirectToAuthorizationDialog:
		return "redirect_to_authorization_dialog"
	case CompleteSignIn:
		return "complete_sign_in"
	case RedirectToDeclinePage:
		return "redirect_to_decline_page"
	default:
		return "unknown"
	}
}

// Decision is the single outcome of a canvas request. Fields beyond Kind are
// set only for the variants that use them.
type Decision struct {
	Kind Kind

	// RedirectToAuthorizationDialog
	DialogURL   string
	ClientID    string
	RedirectURI string
	Scope       string

	// CompleteSignIn
	AccessToken string
	SignIn      connect.Result

	// Target of every plain redirect
	Location string
}

// AuthorizationURL builds the authorization dialog URL for a
// RedirectToAuthorizationDialog decision.
func (d Decision) AuthorizationURL() string {
	q := url.Values{}
	q.Set("client_id", d.ClientID)
	q.Set("redirect_uri", d.RedirectURI)
	if d.Scope != "" {
		q.Set("scope", d.Scope)
	}

	sep := "?"
	if strings.Contains(d.DialogURL, "?") {
		sep = "&"
	}
	return d.DialogURL + sep + q.Encode()
}

// TopLevel reports whether the redirect must replace the top browser window
// rather than the canvas iframe.
func (d Decision) TopLevel() bool {
	return d.Kind == RedirectToAuthorizationDialog
}

// Config holds the app settings the flow needs.
type Config struct {
	ClientID      string
	CanvasPageURL string
	DialogURL     string
	Scope         []string
	PostSignInURL string
	DeclineURL    string
}

// TokenVerifier verifies signed requests. *signedrequest.Verifier implements it.
type TokenVerifier interface {
	Verify(token string) (signedrequest.Payload, error)
}

// SignIner links a verified identity to a local account. *connect.Service implements it.
type SignIner interface {
	SignIn(ctx context.Context, identity connect.Identity) connect.Result
}

// Flow is the canvas authentication state machine.
type Flow struct {
	config   Config
	verifier TokenVerifier
	signIn   SignIner
	logger   logging.Logger
}

// NewFlow creates a Flow.
func NewFlow(config Config, verifier TokenVerifier, signIn SignIner, logger logging.Logger) *Flow {
	return &Flow{
		config:   config,
		verifier: verifier,
		signIn:   signIn,
		logger:   logging.OrGlobal(logger),
	}
}

// Decide classifies one canvas request. The error is non-nil only when a
// signed_request was present and failed verification; it wraps the
// *signedrequest.VerificationError in an authentication AppError.
func (f *Flow) Decide(ctx context.Context, params url.Values) (Decision, error) {
	logger := f.logger.WithContext(ctx)

	if params.Has(ParamSignedRequest) {
		payload, err := f.verifier.Verify(params.Get(ParamSignedRequest))
		if err != nil {
			logger.Warn("Rejected canvas signed request",
				logging.String("reason", string(signedrequest.ReasonOf(err))),
				logging.Err(err),
			)
			return Decision{}, errors.AuthError("signed request verification failed", err)
		}

		if !payload.Has(fieldAccessToken) || payload.String(fieldAccessToken) == "" {
			return Decision{
				Kind:        RedirectToAuthorizationDialog,
				DialogURL:   f.config.DialogURL,
				ClientID:    f.config.ClientID,
				RedirectURI: f.config.CanvasPageURL,
				Scope:       strings.Join(f.config.Scope, ","),
			}, nil
		}

		return f.completeSignIn(ctx, payload), nil
	}

	if params.Has(ParamError) {
		logger.Info("Authorization declined",
			logging.String("error", params.Get(ParamError)),
			logging.String("error_reason", params.Get(ParamErrorReason)),
			logging.String("error_description", params.Get(ParamErrorDescription)),
		)
		return Decision{Kind: RedirectToDeclinePage, Location: f.config.DeclineURL}, nil
	}

	return Decision{Kind: RedirectToCanvasPage, Location: f.config.CanvasPageURL}, nil
}

func (f *Flow) completeSignIn(ctx context.Context, payload signedrequest.Payload) Decision {
	identity := connect.Identity{
		ProviderUserID: payload.String(fieldUserID),
		AccessToken:    payload.String(fieldAccessToken),
	}
	// expires is 0 for tokens that do not expire
	if expires, ok := payload.Int64(fieldExpires); ok && expires > 0 {
		t := time.Unix(expires, 0).UTC()
		identity.ExpiresAt = &t
	}

	result := f.signIn.SignIn(ctx, identity)
	if result.Degraded() {
		f.logger.WithContext(ctx).Warn("Canvas sign-in completed without a local session",
			logging.String("outcome", string(result.Outcome)),
		)
	}

	return Decision{
		Kind:        CompleteSignIn,
		AccessToken: identity.AccessToken,
		SignIn:      result,
		Location:    f.config.PostSignInURL,
	}
}
