// Package connect links a verified platform identity to a local account and
// issues a session for it.
//
// The linked-account lookup may find zero, one or several local users. Zero
// creates a user when auto sign-up is on; several is ambiguous. Neither case,
// nor a storage failure, is an error to the caller: the outcome is reported
// as degraded and logged, because the platform already considers the
// sign-in done.
package connect

import (
	"context"
	"time"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/session"
	"canvas-gateway/internal/storage"
)

// Identity is what a verified signed request says about the platform user.
type Identity struct {
	ProviderUserID string
	AccessToken    string
	ExpiresAt      *time.Time
}

// Outcome classifies a sign-in attempt.
type Outcome string

const (
	OutcomeSignedIn  Outcome = "signed_in"
	OutcomeSignedUp  Outcome = "signed_up"
	OutcomeNoAccount Outcome = "no_account"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeFailed    Outcome = "failed"
)

// Result is the outcome of SignIn. Token and Claims are set only when a
// session was issued.
type Result struct {
	Outcome Outcome
	UserID  string
	Token   string
	Claims  *session.Claims
}

// Degraded reports whether the sign-in completed without a local session.
func (r Result) Degraded() bool {
	return r.Token == ""
}

// Store is the part of storage.Repository sign-in needs.
type Store interface {
	CreateUser(ctx context.Context, user *storage.User) error
	FindUserIDsConnectedTo(ctx context.Context, providerID, providerUserID string) ([]string, error)
	SaveConnection(ctx context.Context, conn *storage.Connection) error
}

// SessionIssuer issues local sessions; *session.Manager satisfies it.
type SessionIssuer interface {
	Issue(userID, providerID string) (string, *session.Claims, error)
}

// Service implements canvas sign-in.
type Service struct {
	store      Store
	sessions   SessionIssuer
	providerID string
	autoSignUp bool
	logger     logging.Logger
}

// NewService creates a sign-in service for providerID.
func NewService(store Store, sessions SessionIssuer, providerID string, autoSignUp bool, logger logging.Logger) *Service {
	return &Service{
		store:      store,
		sessions:   sessions,
		providerID: providerID,
		autoSignUp: autoSignUp,
		logger:     logging.OrGlobal(logger),
	}
}

// SignIn connects identity to its local user and issues a session.
func (s *Service) SignIn(ctx context.Context, identity Identity) Result {
	logger := s.logger.WithContext(ctx).WithFields(
		logging.String("provider", s.providerID),
		logging.String("provider_user_id", identity.ProviderUserID),
	)

	if identity.ProviderUserID == "" {
		logger.Warn("Signed request carried an access token but no user id")
		return Result{Outcome: OutcomeFailed}
	}

	userIDs, err := s.store.FindUserIDsConnectedTo(ctx, s.providerID, identity.ProviderUserID)
	if err != nil {
		logger.Error("Failed to look up linked accounts", err)
		return Result{Outcome: OutcomeFailed}
	}

	outcome := OutcomeSignedIn
	var userID string

	switch len(userIDs) {
	case 0:
		if !s.autoSignUp {
			logger.Warn("No local account is linked and sign-up is disabled")
			return Result{Outcome: OutcomeNoAccount}
		}
		user := &storage.User{DisplayName: s.providerID + ":" + identity.ProviderUserID}
		if err := s.store.CreateUser(ctx, user); err != nil {
			logger.Error("Failed to create local user", err)
			return Result{Outcome: OutcomeFailed}
		}
		userID = user.ID
		outcome = OutcomeSignedUp
		logger.Info("Created local user for platform identity", logging.String("user_id", userID))
	case 1:
		userID = userIDs[0]
	default:
		logger.Warn("Expected exactly one linked account",
			logging.Int("found", len(userIDs)),
			logging.Strings("user_ids", userIDs),
		)
		return Result{Outcome: OutcomeAmbiguous}
	}

	err = s.store.SaveConnection(ctx, &storage.Connection{
		UserID:         userID,
		ProviderID:     s.providerID,
		ProviderUserID: identity.ProviderUserID,
		AccessToken:    identity.AccessToken,
		ExpiresAt:      identity.ExpiresAt,
	})
	if err != nil {
		logger.Error("Failed to save connection", err, logging.String("user_id", userID))
		return Result{Outcome: OutcomeFailed, UserID: userID}
	}

	token, claims, err := s.sessions.Issue(userID, s.providerID)
	if err != nil {
		logger.Error("Failed to issue session", err, logging.String("user_id", userID))
		return Result{Outcome: OutcomeFailed, UserID: userID}
	}

	logger.Info("Canvas sign-in completed",
		logging.String("user_id", userID),
		logging.String("outcome", string(outcome)),
	)
	return Result{Outcome: outcome, UserID: userID, Token: token, Claims: claims}
}
