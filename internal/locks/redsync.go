package locks

import (
	"context"
	stderrors "errors"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/redis"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// RedsyncLocker implements Locker with the Redlock algorithm from
// go-redsync/redsync/v4.
type RedsyncLocker struct {
	redsync *redsync.Redsync
}

// NewRedsyncLocker creates a locker backed by redisClient.
func NewRedsyncLocker(redisClient *redis.Client) (*RedsyncLocker, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	pool := goredis.NewPool(redisClient.Underlying())
	return &RedsyncLocker{redsync: redsync.New(pool)}, nil
}

// TryLock makes a single acquisition attempt.
func (l *RedsyncLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	mutex := l.redsync.NewMutex("lock:"+key, redsync.WithExpiry(ttl), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if stderrors.As(err, &taken) || stderrors.Is(err, redsync.ErrFailed) {
			return nil, ErrNotAcquired
		}
		return nil, errors.ConnectionError("failed to acquire distributed lock", err).WithContext("key", key)
	}
	return &redsyncLock{mutex: mutex, key: key}, nil
}

type redsyncLock struct {
	mutex *redsync.Mutex
	key   string
}

func (l *redsyncLock) Key() string { return l.key }

func (l *redsyncLock) Release(ctx context.Context) error {
	if _, err := l.mutex.UnlockContext(ctx); err != nil {
		return errors.ConnectionError("failed to release distributed lock", err).WithContext("key", l.key)
	}
	return nil
}
