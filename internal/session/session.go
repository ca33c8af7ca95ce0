// Package session issues the local session that follows a completed canvas
// sign-in: an HS256 JWT carried in a cookie, revocable through Redis.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lucsky/cuid"
)

// Issuer is the iss claim of every session token.
const Issuer = "canvas-gateway"

const revokedKeyPrefix = "session:revoked:"

// Claims are the session token claims.
type Claims struct {
	UserID     string `json:"user_id"`
	ProviderID string `json:"provider_id"`
	jwt.RegisteredClaims
}

// Revoker stores revoked session ids. *redis.Client satisfies it.
type Revoker interface {
	Mark(ctx context.Context, key string, ttl time.Duration) error
	IsMarked(ctx context.Context, key string) (bool, error)
}

// Config configures a Manager.
type Config struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
}

// Manager issues and validates session tokens.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	revoker    Revoker
	logger     logging.Logger
}

// NewManager creates a Manager. revoker may be nil, in which case tokens
// stay valid until they expire.
func NewManager(config Config, revoker Revoker, logger logging.Logger) (*Manager, error) {
	if len(config.Secret) < 32 {
		return nil, errors.ConfigError("session secret must be at least 32 bytes")
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.CookieName == "" {
		config.CookieName = "session"
	}

	secret := make([]byte, len(config.Secret))
	copy(secret, config.Secret)

	return &Manager{
		secret:     secret,
		ttl:        config.TTL,
		cookieName: config.CookieName,
		revoker:    revoker,
		logger:     logging.OrGlobal(logger),
	}, nil
}

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Issue signs a new session token for userID.
func (m *Manager) Issue(userID, providerID string) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     userID,
		ProviderID: providerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        cuid.New(),
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, errors.InternalError("failed to sign session token", err)
	}
	return token, claims, nil
}

// Validate parses token and checks signature, expiry, issuer and revocation.
func (m *Manager) Validate(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.AuthError("invalid session token", err)
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, errors.AuthError("invalid session token", fmt.Errorf("missing user or token id"))
	}

	if m.revoker != nil {
		revoked, err := m.revoker.IsMarked(ctx, revokedKeyPrefix+claims.ID)
		if err != nil {
			return nil, errors.ConnectionError("failed to check session revocation", err)
		}
		if revoked {
			return nil, errors.AuthError("session has been revoked", nil)
		}
	}
	return claims, nil
}

// Revoke marks claims' token as revoked until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revoker == nil {
		m.logger.Debug("Session revocation unavailable without Redis",
			logging.String("session_id", claims.ID))
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := m.revoker.Mark(ctx, revokedKeyPrefix+claims.ID, ttl); err != nil {
		return errors.ConnectionError("failed to revoke session", err)
	}
	return nil
}

// SetCookie writes token as the session cookie. The canvas page is framed
// by the platform, so the cookie must be SameSite=None and Secure.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, claims *Claims) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		MaxAge:   int(time.Until(claims.ExpiresAt.Time).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

type contextKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the claims attached by Require.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

// Require rejects requests without a valid session cookie with 401.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		claims, err := m.Validate(r.Context(), cookie.Value)
		if err != nil {
			m.logger.WithContext(r.Context()).Debug("Rejected session", logging.Err(err))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
