// Package sweeper clears access tokens whose expiry has passed. Connections
// stay in place so deauthorization callbacks still find them; only the
// credential is dropped.
package sweeper

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/locks"

	"github.com/robfig/cron/v3"
)

// LockKey names the lock a sweep runs under.
const LockKey = "token-sweep"

// Store is the part of storage.Repository the sweeper needs.
type Store interface {
	ClearExpiredTokens(ctx context.Context, before time.Time) (int, error)
}

// Sweeper runs token sweeps on a cron schedule, one instance at a time.
type Sweeper struct {
	store   Store
	locker  locks.Locker
	logger  logging.Logger
	lockTTL time.Duration
	now     func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func New(store Store, locker locks.Locker, logger logging.Logger) *Sweeper {
	if locker == nil {
		locker = locks.NewLocalLocker()
	}
	return &Sweeper{
		store:   store,
		locker:  locker,
		logger:  logging.OrGlobal(logger).WithFields(logging.String("component", "token_sweeper")),
		lockTTL: 5 * time.Minute,
		now:     time.Now,
	}
}

// Sweep clears every token that expired before now. When another instance
// holds the sweep lock it returns 0 and locks.ErrNotAcquired.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	lock, err := s.locker.TryLock(ctx, LockKey, s.lockTTL)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			s.logger.Warn("Failed to release sweep lock", logging.Err(err))
		}
	}()

	cleared, err := s.store.ClearExpiredTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return cleared, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
	defer cancel()

	start := time.Now()
	cleared, err := s.Sweep(ctx)
	switch {
	case stderrors.Is(err, locks.ErrNotAcquired):
		s.logger.Debug("Token sweep running elsewhere, skipping")
	case err != nil:
		s.logger.Error("Token sweep failed", err)
	default:
		s.logger.Info("Token sweep finished",
			logging.Int("cleared", cleared),
			logging.Duration("duration", time.Since(start)),
		)
	}
}

// Start schedules sweeps according to spec, a standard cron expression or a
// descriptor such as "@every 1h".
func (s *Sweeper) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.InternalError("token sweeper already started", nil)
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid sweep schedule %q: %v", spec, err))
	}
	c.Start()
	s.cron = c

	s.logger.Info("Token sweeper started", logging.String("schedule", spec))
	return nil
}

// Stop unschedules sweeps and waits for a running one to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging through logging.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, err, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
