// Package memory is an in-process storage.Repository, used when no database
// is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/storage"

	"github.com/lucsky/cuid"
)

type connectionKey struct {
	userID, providerID, providerUserID string
}

type Repository struct {
	mu          sync.RWMutex
	users       map[string]storage.User
	connections map[connectionKey]storage.Connection
}

func New() *Repository {
	return &Repository{
		users:       make(map[string]storage.User),
		connections: make(map[connectionKey]storage.Connection),
	}
}

func (r *Repository) CreateUser(ctx context.Context, user *storage.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = cuid.New()
	}
	if _, exists := r.users[user.ID]; exists {
		return errors.ValidationError("user already exists").WithContext("user_id", user.ID)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.ID] = *user
	return nil
}

func (r *Repository) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, errors.NotFoundError("user")
	}
	return &user, nil
}

func (r *Repository) FindUserIDsConnectedTo(ctx context.Context, providerID, providerUserID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var userIDs []string
	for key := range r.connections {
		if key.providerID == providerID && key.providerUserID == providerUserID {
			userIDs = append(userIDs, key.userID)
		}
	}
	sort.Strings(userIDs)
	return userIDs, nil
}

func (r *Repository) SaveConnection(ctx context.Context, conn *storage.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[conn.UserID]; !ok {
		return errors.NotFoundError("user")
	}

	now := time.Now().UTC()
	key := connectionKey{conn.UserID, conn.ProviderID, conn.ProviderUserID}
	if existing, ok := r.connections[key]; ok {
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
	}
	if conn.ID == "" {
		conn.ID = cuid.New()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	stored := *conn
	if conn.ExpiresAt != nil {
		t := *conn.ExpiresAt
		stored.ExpiresAt = &t
	}
	r.connections[key] = stored
	return nil
}

func (r *Repository) GetConnection(ctx context.Context, userID, providerID, providerUserID string) (*storage.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connectionKey{userID, providerID, providerUserID}]
	if !ok {
		return nil, errors.NotFoundError("connection")
	}
	return &conn, nil
}

func (r *Repository) RemoveConnection(ctx context.Context, userID, providerID, providerUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.connections, connectionKey{userID, providerID, providerUserID})
	return nil
}

func (r *Repository) ClearExpiredTokens(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := 0
	for key, conn := range r.connections {
		if conn.ExpiresAt == nil || conn.ExpiresAt.After(before) {
			continue
		}
		conn.AccessToken = ""
		conn.ExpiresAt = nil
		conn.UpdatedAt = time.Now().UTC()
		r.connections[key] = conn
		cleared++
	}
	return cleared, nil
}

func (r *Repository) Health(ctx context.Context) error {
	return nil
}

func (r *Repository) Close() error {
	return nil
}

// Factory registers the in-memory repository with a storage.Registry.
type Factory struct{}

func (Factory) GetType() string {
	return "memory"
}

func (Factory) Create(config storage.StorageConfig) (storage.Repository, error) {
	return New(), nil
}
