package handlers

import (
	"html/template"
	"net/http"

	"canvas-gateway/internal/canvas"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"
)

// topRedirectPage breaks out of the canvas iframe. html/template escapes the
// URL for the script and attribute contexts.
var topRedirectPage = template.Must(template.New("top-redirect").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting</title></head>
<body>
<script>window.top.location.href = {{.}};</script>
<noscript><a href="{{.}}" target="_top">Continue</a></noscript>
</body>
</html>
`))

// Canvas handles GET and POST /canvas. The platform POSTs signed_request
// into the iframe; the first load and declines arrive as GET.
func (h *Handlers) Canvas(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(w, r)
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	decision, err := h.flow.Decide(r.Context(), params)
	if err != nil {
		// reason is logged by the flow; the body is the same for every failure
		status := errors.HTTPStatus(err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	h.renderDecision(w, r, decision)
}

// renderDecision turns a canvas decision into exactly one response.
func (h *Handlers) renderDecision(w http.ResponseWriter, r *http.Request, d canvas.Decision) {
	switch d.Kind {
	case canvas.RedirectToAuthorizationDialog:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := topRedirectPage.Execute(w, d.AuthorizationURL()); err != nil {
			h.logger.WithContext(r.Context()).Error("Failed to render redirect page", err)
		}

	case canvas.CompleteSignIn:
		if d.SignIn.Token != "" && h.sessions != nil {
			h.sessions.SetCookie(w, d.SignIn.Token, d.SignIn.Claims)
		}
		http.Redirect(w, r, d.Location, http.StatusFound)

	case canvas.RedirectToCanvasPage, canvas.RedirectToDeclinePage:
		http.Redirect(w, r, d.Location, http.StatusFound)

	default:
		h.logger.WithContext(r.Context()).Error("Unknown canvas decision", nil,
			logging.String("kind", d.Kind.String()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}
