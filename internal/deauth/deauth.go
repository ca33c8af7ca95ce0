// Package deauth handles the platform's deauthorization callback, sent when
// a user removes the app. The callback carries a signed request naming the
// platform user; every local connection to that identity is removed.
package deauth

import (
	"context"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/signedrequest"
)

// Outcome summarizes what a callback did.
type Outcome string

const (
	// OutcomeRemoved means every linked connection was removed
	OutcomeRemoved Outcome = "removed"
	// OutcomeNoConnections means the identity was not linked to any local account
	OutcomeNoConnections Outcome = "no_connections"
	// OutcomeDegraded means the callback was genuine but cleanup was incomplete
	OutcomeDegraded Outcome = "degraded"
	// OutcomeRejected means the signed request failed verification
	OutcomeRejected Outcome = "rejected"
)

// Accepted reports whether the platform should be told the callback succeeded.
func (o Outcome) Accepted() bool {
	return o != OutcomeRejected
}

// Result is the outcome of one callback.
type Result struct {
	Outcome        Outcome
	ProviderUserID string
	Removed        int
	Failed         int
}

// TokenVerifier verifies signed requests. *signedrequest.Verifier implements it.
type TokenVerifier interface {
	Verify(token string) (signedrequest.Payload, error)
}

// ConnectionStore is the part of storage.Repository the handler needs.
type ConnectionStore interface {
	FindUserIDsConnectedTo(ctx context.Context, providerID, providerUserID string) ([]string, error)
	RemoveConnection(ctx context.Context, userID, providerID, providerUserID string) error
}

// Handler processes deauthorization callbacks for one provider.
type Handler struct {
	verifier   TokenVerifier
	store      ConnectionStore
	providerID string
	logger     logging.Logger
}

func NewHandler(verifier TokenVerifier, store ConnectionStore, providerID string, logger logging.Logger) *Handler {
	return &Handler{
		verifier:   verifier,
		store:      store,
		providerID: providerID,
		logger:     logging.OrGlobal(logger),
	}
}

// ProviderID returns the provider this handler serves.
func (h *Handler) ProviderID() string {
	return h.providerID
}

// Handle verifies signedRequest and removes the identity's connections.
// The error is non-nil only for OutcomeRejected, and is then the verification
// failure; nothing has been touched in that case. Storage failures after
// verification are logged and reported as OutcomeDegraded.
func (h *Handler) Handle(ctx context.Context, signedRequest string) (Result, error) {
	logger := h.logger.WithContext(ctx).WithFields(logging.String("provider", h.providerID))

	payload, err := h.verifier.Verify(signedRequest)
	if err != nil {
		logger.Warn("Rejected deauthorization callback",
			logging.String("reason", string(signedrequest.ReasonOf(err))),
			logging.Err(err),
		)
		return Result{Outcome: OutcomeRejected}, err
	}

	providerUserID := payload.String("user_id")
	if providerUserID == "" {
		logger.Warn("Deauthorization payload has no user_id")
		return Result{Outcome: OutcomeDegraded}, nil
	}

	result := Result{ProviderUserID: providerUserID}
	logger = logger.WithFields(logging.String("provider_user_id", providerUserID))

	userIDs, err := h.store.FindUserIDsConnectedTo(ctx, h.providerID, providerUserID)
	if err != nil {
		logger.Error("Failed to look up linked accounts", err)
		result.Outcome = OutcomeDegraded
		return result, nil
	}

	if len(userIDs) == 0 {
		logger.Info("No linked accounts to deauthorize")
		result.Outcome = OutcomeNoConnections
		return result, nil
	}

	for _, userID := range userIDs {
		if err := h.store.RemoveConnection(ctx, userID, h.providerID, providerUserID); err != nil {
			logger.Error("Failed to remove connection", err, logging.String("user_id", userID))
			result.Failed++
			continue
		}
		result.Removed++
	}

	result.Outcome = OutcomeRemoved
	if result.Failed > 0 {
		result.Outcome = OutcomeDegraded
	}

	logger.Info("Deauthorized platform identity",
		logging.Int("removed", result.Removed),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}
