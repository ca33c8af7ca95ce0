// Package storage defines the connection repository: the links between local
// user accounts and platform identities created by canvas sign-in and removed
// by deauthorization callbacks.
//
// Implementations live in sqlstore (SQLite and PostgreSQL) and memory. They
// are created through the Registry so the database type stays a configuration
// choice.
//
//	repo, err := storage.Create("sqlite", sqlstore.SQLiteConfig{Path: "canvas.db"})
//	if err != nil {
//		return err
//	}
//	defer repo.Close()
//
//	userIDs, err := repo.FindUserIDsConnectedTo(ctx, "facebook", "100001234567890")
package storage

import (
	"context"
	"time"
)

// User is a local account.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// Connection links a local user to a platform identity.
// AccessToken is stored sealed when the repository has a Sealer.
type Connection struct {
	ID             string
	UserID         string
	ProviderID     string
	ProviderUserID string
	AccessToken    string
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository stores users and their platform connections.
type Repository interface {
	// CreateUser inserts a user, assigning an ID when empty.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID string) (*User, error)

	// FindUserIDsConnectedTo returns the local users linked to a platform
	// identity. The result may hold zero, one or several ids.
	FindUserIDsConnectedTo(ctx context.Context, providerID, providerUserID string) ([]string, error)

	// SaveConnection inserts the connection or updates the token and expiry
	// of the existing (user, provider, provider user) link.
	SaveConnection(ctx context.Context, conn *Connection) error
	GetConnection(ctx context.Context, userID, providerID, providerUserID string) (*Connection, error)

	// RemoveConnection deletes one link. Removing a missing link is not an error.
	RemoveConnection(ctx context.Context, userID, providerID, providerUserID string) error

	// ClearExpiredTokens blanks the access token and expiry of every
	// connection that expired at or before the given time. The links stay.
	ClearExpiredTokens(ctx context.Context, before time.Time) (int, error)

	Health(ctx context.Context) error
	Close() error
}

// Sealer protects access tokens at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// StorageConfig describes how to reach a backend.
type StorageConfig interface {
	Validate() error
	GetType() string
}

// StorageFactory creates repositories of one backend type.
type StorageFactory interface {
	Create(config StorageConfig) (Repository, error)
	GetType() string
}
