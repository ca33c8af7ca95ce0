package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/locks"
	"canvas-gateway/internal/storage"
	"canvas-gateway/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	calls  int32
	before time.Time
	err    error
}

func (s *countingStore) ClearExpiredTokens(ctx context.Context, before time.Time) (int, error) {
	atomic.AddInt32(&s.calls, 1)
	s.before = before
	if s.err != nil {
		return 0, s.err
	}
	return 2, nil
}

func TestSweep_ClearsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	u1 := &storage.User{DisplayName: "Ada"}
	u2 := &storage.User{DisplayName: "Grace"}
	require.NoError(t, repo.CreateUser(ctx, u1))
	require.NoError(t, repo.CreateUser(ctx, u2))

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, repo.SaveConnection(ctx, &storage.Connection{
		UserID: u1.ID, ProviderID: "facebook", ProviderUserID: "1", AccessToken: "old", ExpiresAt: &past,
	}))
	require.NoError(t, repo.SaveConnection(ctx, &storage.Connection{
		UserID: u2.ID, ProviderID: "facebook", ProviderUserID: "2", AccessToken: "fresh", ExpiresAt: &future,
	}))

	s := New(repo, locks.NewLocalLocker(), logging.NewNopLogger())
	cleared, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	expired, err := repo.GetConnection(ctx, u1.ID, "facebook", "1")
	require.NoError(t, err)
	assert.Empty(t, expired.AccessToken)

	kept, err := repo.GetConnection(ctx, u2.ID, "facebook", "2")
	require.NoError(t, err)
	assert.Equal(t, "fresh", kept.AccessToken)
}

func TestSweep_LockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	locker := locks.NewLocalLocker()
	held, err := locker.TryLock(ctx, LockKey, time.Minute)
	require.NoError(t, err)

	store := &countingStore{}
	s := New(store, locker, logging.NewNopLogger())

	_, err = s.Sweep(ctx)
	assert.ErrorIs(t, err, locks.ErrNotAcquired)
	assert.Zero(t, atomic.LoadInt32(&store.calls))

	require.NoError(t, held.Release(ctx))
	cleared, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)
}

func TestSweep_StoreErrorReleasesLock(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{err: errors.New("database unavailable")}
	s := New(store, nil, logging.NewNopLogger())

	_, err := s.Sweep(ctx)
	require.Error(t, err)

	_, err = s.Sweep(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, locks.ErrNotAcquired)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.calls))
}

func TestSweep_UsesCurrentTime(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &countingStore{}
	s := New(store, nil, logging.NewNopLogger())
	s.now = func() time.Time { return fixed }

	_, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixed, store.before)
}

func TestStartStop(t *testing.T) {
	store := &countingStore{}
	s := New(store, nil, logging.NewNopLogger())

	require.Error(t, s.Start("not a schedule"))

	require.NoError(t, s.Start("@every 1s"))
	assert.Error(t, s.Start("@every 1s"), "second start is rejected")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&store.calls) > 0
	}, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "stopping twice is a no-op")
}
