package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WindowCounter records a hit and returns the hits already in the trailing
// window. *redis.Client implements it.
type WindowCounter interface {
	WindowHits(ctx context.Context, key string, window time.Duration) (int, error)
}

// RedisStore is a sliding-window Store shared by every gateway instance.
type RedisStore struct {
	counter WindowCounter
	prefix  string
}

// NewRedisStore keys its windows under "rate_limit:".
func NewRedisStore(counter WindowCounter) *RedisStore {
	return &RedisStore{counter: counter, prefix: "rate_limit:"}
}

func (s *RedisStore) Take(ctx context.Context, key string, p Policy) (Usage, error) {
	prior, err := s.counter.WindowHits(ctx, s.prefix+key, p.Window)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Allowed:   prior < p.Limit,
		Remaining: max(p.Limit-prior-1, 0),
	}, nil
}

// MemoryStore keeps one token bucket per key, refilled at Limit per Window
// with a burst of Limit. Buckets idle for two windows are dropped once the
// store holds more than maxKeys of them.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxKeys int
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	policy   Policy
	lastSeen time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		maxKeys: 10000,
		now:     time.Now,
	}
}

func (s *MemoryStore) Take(ctx context.Context, key string, p Policy) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || b.policy != p {
		if len(s.buckets) >= s.maxKeys {
			s.evictIdle(now)
		}
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(p.Window/time.Duration(p.Limit)), p.Limit),
			policy:  p,
		}
		s.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	return Usage{
		Allowed:   allowed,
		Remaining: max(int(b.limiter.TokensAt(now)), 0),
	}, nil
}

// Len reports how many buckets are held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *MemoryStore) evictIdle(now time.Time) {
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > 2*b.policy.Window {
			delete(s.buckets, key)
		}
	}
}
