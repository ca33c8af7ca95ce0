package memory

import (
	"context"
	"testing"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Repository = (*Repository)(nil)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	r := New()

	user := &storage.User{DisplayName: "Grace"}
	require.NoError(t, r.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.Error(t, r.CreateUser(ctx, &storage.User{ID: user.ID}))

	err := r.SaveConnection(ctx, &storage.Connection{UserID: "ghost", ProviderID: "facebook", ProviderUserID: "1"})
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	first := &storage.Connection{UserID: user.ID, ProviderID: "facebook", ProviderUserID: "1", AccessToken: "a"}
	require.NoError(t, r.SaveConnection(ctx, first))

	second := &storage.Connection{UserID: user.ID, ProviderID: "facebook", ProviderUserID: "1", AccessToken: "b"}
	require.NoError(t, r.SaveConnection(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	conn, err := r.GetConnection(ctx, user.ID, "facebook", "1")
	require.NoError(t, err)
	assert.Equal(t, "b", conn.AccessToken)

	ids, err := r.FindUserIDsConnectedTo(ctx, "facebook", "1")
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID}, ids)

	require.NoError(t, r.RemoveConnection(ctx, user.ID, "facebook", "1"))
	ids, err = r.FindUserIDsConnectedTo(ctx, "facebook", "1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = r.GetUser(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestFactory(t *testing.T) {
	registry := storage.NewRegistry()
	registry.Register(Factory{})
	_, ok := registry.Resolve("memory")
	assert.True(t, ok)

	repo, err := registry.Create("memory", nil)
	require.NoError(t, err)
	assert.NoError(t, repo.Health(context.Background()))
	assert.NoError(t, repo.Close())
}

func TestRepository_ClearExpiredTokens(t *testing.T) {
	ctx := context.Background()
	r := New()

	user := &storage.User{DisplayName: "Grace"}
	require.NoError(t, r.CreateUser(ctx, user))

	now := time.Now().UTC()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	require.NoError(t, r.SaveConnection(ctx, &storage.Connection{UserID: user.ID, ProviderID: "facebook", ProviderUserID: "1", AccessToken: "old", ExpiresAt: &past}))
	require.NoError(t, r.SaveConnection(ctx, &storage.Connection{UserID: user.ID, ProviderID: "facebook", ProviderUserID: "2", AccessToken: "fresh", ExpiresAt: &future}))
	require.NoError(t, r.SaveConnection(ctx, &storage.Connection{UserID: user.ID, ProviderID: "facebook", ProviderUserID: "3", AccessToken: "forever"}))

	n, err := r.ClearExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	conn, err := r.GetConnection(ctx, user.ID, "facebook", "1")
	require.NoError(t, err)
	assert.Empty(t, conn.AccessToken)
	assert.Nil(t, conn.ExpiresAt)

	for id, token := range map[string]string{"2": "fresh", "3": "forever"} {
		conn, err := r.GetConnection(ctx, user.ID, "facebook", id)
		require.NoError(t, err)
		assert.Equal(t, token, conn.AccessToken)
	}
}
