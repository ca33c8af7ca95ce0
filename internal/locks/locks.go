// Package locks keeps scheduled work to a single holder. RedsyncLocker
// coordinates instances through Redis; LocalLocker covers a single process.
package locks

import (
	"context"
	stderrors "errors"
	"sync"
	"time"
)

// ErrNotAcquired means another holder has the lock.
var ErrNotAcquired = stderrors.New("lock is held elsewhere")

// Lock is a held lock.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker hands out locks without waiting for them.
type Locker interface {
	// TryLock acquires key for at most ttl, or returns ErrNotAcquired.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, ErrNotAcquired
	}
	until := now.Add(ttl)
	l.held[key] = until
	return &localLock{locker: l, key: key, until: until}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	until  time.Time
}

func (l *localLock) Key() string { return l.key }

func (l *localLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	// a lock that expired may already belong to someone else
	if until, ok := l.locker.held[l.key]; ok && until.Equal(l.until) {
		delete(l.locker.held, l.key)
	}
	return nil
}
