package handlers

import (
	"net/http"

	"canvas-gateway/internal/session"
)

// Session handles GET /session behind session.Manager.Require.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    claims.UserID,
		"provider":   claims.ProviderID,
		"expires_at": claims.ExpiresAt.Time.UTC(),
	})
}

// SignOut handles POST /signout behind session.Manager.Require.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if claims, ok := session.ClaimsFromContext(r.Context()); ok {
		if err := h.sessions.Revoke(r.Context(), claims); err != nil {
			h.logger.WithContext(r.Context()).Error("Failed to revoke session", err)
		}
	}
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
