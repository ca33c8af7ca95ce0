package handlers

import (
	"net/http"

	"canvas-gateway/internal/common/logging"

	"github.com/gorilla/mux"
)

// Deauthorize handles POST /deauthorize[/{provider}].
// 204 for any genuine callback, 400 with one fixed body for any rejected one.
func (h *Handlers) Deauthorize(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if provider == "" {
		provider = h.defaultProvider
	}

	handler, ok := h.deauth[provider]
	if !ok {
		http.NotFound(w, r)
		return
	}

	params, err := h.parseParams(w, r)
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	result, err := handler.Handle(r.Context(), params.Get("signed_request"))
	if err != nil || !result.Outcome.Accepted() {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	h.logger.WithContext(r.Context()).Debug("Deauthorization handled",
		logging.String("provider", provider),
		logging.String("outcome", string(result.Outcome)),
	)
	w.WriteHeader(http.StatusNoContent)
}
