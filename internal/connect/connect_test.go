package connect

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/session"
	"canvas-gateway/internal/storage"
	"canvas-gateway/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user *storage.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockStore) FindUserIDsConnectedTo(ctx context.Context, providerID, providerUserID string) ([]string, error) {
	args := m.Called(ctx, providerID, providerUserID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockStore) SaveConnection(ctx context.Context, conn *storage.Connection) error {
	return m.Called(ctx, conn).Error(0)
}

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(session.Config{Secret: []byte(strings.Repeat("k", 32)), TTL: time.Hour}, nil, logging.NewNopLogger())
	require.NoError(t, err)
	return m
}

func TestSignIn_AutoSignUp(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewService(repo, newSessions(t), "facebook", true, logging.NewNopLogger())

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	result := svc.SignIn(ctx, Identity{ProviderUserID: "1001", AccessToken: "tok-1", ExpiresAt: &expires})

	assert.Equal(t, OutcomeSignedUp, result.Outcome)
	assert.False(t, result.Degraded())
	require.NotNil(t, result.Claims)
	assert.Equal(t, result.UserID, result.Claims.UserID)

	conn, err := repo.GetConnection(ctx, result.UserID, "facebook", "1001")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", conn.AccessToken)
	require.NotNil(t, conn.ExpiresAt)
	assert.True(t, expires.Equal(*conn.ExpiresAt))

	second := svc.SignIn(ctx, Identity{ProviderUserID: "1001", AccessToken: "tok-2"})
	assert.Equal(t, OutcomeSignedIn, second.Outcome)
	assert.Equal(t, result.UserID, second.UserID)

	conn, err = repo.GetConnection(ctx, result.UserID, "facebook", "1001")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", conn.AccessToken)
}

func TestSignIn_NoAccountWithoutSignUp(t *testing.T) {
	repo := memory.New()
	svc := NewService(repo, newSessions(t), "facebook", false, logging.NewNopLogger())

	result := svc.SignIn(context.Background(), Identity{ProviderUserID: "1001", AccessToken: "tok"})
	assert.Equal(t, OutcomeNoAccount, result.Outcome)
	assert.True(t, result.Degraded())

	ids, err := repo.FindUserIDsConnectedTo(context.Background(), "facebook", "1001")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSignIn_Ambiguous(t *testing.T) {
	store := &MockStore{}
	store.On("FindUserIDsConnectedTo", mock.Anything, "facebook", "1001").Return([]string{"u1", "u2"}, nil)

	svc := NewService(store, newSessions(t), "facebook", true, logging.NewNopLogger())
	result := svc.SignIn(context.Background(), Identity{ProviderUserID: "1001", AccessToken: "tok"})

	assert.Equal(t, OutcomeAmbiguous, result.Outcome)
	assert.True(t, result.Degraded())
	store.AssertNotCalled(t, "SaveConnection", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestSignIn_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing user id", func(t *testing.T) {
		store := &MockStore{}
		svc := NewService(store, newSessions(t), "facebook", true, logging.NewNopLogger())
		result := svc.SignIn(ctx, Identity{AccessToken: "tok"})
		assert.Equal(t, OutcomeFailed, result.Outcome)
		store.AssertNotCalled(t, "FindUserIDsConnectedTo", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lookup fails", func(t *testing.T) {
		store := &MockStore{}
		store.On("FindUserIDsConnectedTo", mock.Anything, "facebook", "1001").Return(nil, stderrors.New("db down"))
		svc := NewService(store, newSessions(t), "facebook", true, logging.NewNopLogger())
		assert.Equal(t, OutcomeFailed, svc.SignIn(ctx, Identity{ProviderUserID: "1001"}).Outcome)
	})

	t.Run("save fails", func(t *testing.T) {
		store := &MockStore{}
		store.On("FindUserIDsConnectedTo", mock.Anything, "facebook", "1001").Return([]string{"u1"}, nil)
		store.On("SaveConnection", mock.Anything, mock.Anything).Return(stderrors.New("db down"))
		svc := NewService(store, newSessions(t), "facebook", true, logging.NewNopLogger())

		result := svc.SignIn(ctx, Identity{ProviderUserID: "1001", AccessToken: "tok"})
		assert.Equal(t, OutcomeFailed, result.Outcome)
		assert.Equal(t, "u1", result.UserID)
		assert.True(t, result.Degraded())
	})

	t.Run("create user fails", func(t *testing.T) {
		store := &MockStore{}
		store.On("FindUserIDsConnectedTo", mock.Anything, "facebook", "1001").Return([]string{}, nil)
		store.On("CreateUser", mock.Anything, mock.Anything).Return(stderrors.New("db down"))
		svc := NewService(store, newSessions(t), "facebook", true, logging.NewNopLogger())
		assert.Equal(t, OutcomeFailed, svc.SignIn(ctx, Identity{ProviderUserID: "1001"}).Outcome)
		store.AssertNotCalled(t, "SaveConnection", mock.Anything, mock.Anything)
	})
}
