// Package ratelimit throttles the platform callback endpoints per client.
//
// With Redis configured every gateway instance counts against one shared
// sliding window. Without it each instance keeps its own token buckets.
// A store failure lets the request through.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"canvas-gateway/internal/common/logging"
)

// Policy is the number of requests a client may make per window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Usage is a store's answer for one hit.
type Usage struct {
	Allowed   bool
	Remaining int
}

// Store counts a hit on key under p.
type Store interface {
	Take(ctx context.Context, key string, p Policy) (Usage, error)
}

// Config holds the RATE_LIMIT_* settings.
type Config struct {
	Enabled bool
	Policy  Policy
}

// Result is the outcome of Check.
type Result struct {
	Policy
	Usage
	Reset time.Time
}

// Limiter applies one Policy to every key.
type Limiter struct {
	store   Store
	config  Config
	backend string
	logger  logging.Logger
}

// NewLimiter creates a limiter over store. A nil store means per-instance
// token buckets. Non-positive policy values fall back to 100 per minute.
func NewLimiter(store Store, config Config, logger logging.Logger) *Limiter {
	if config.Policy.Limit <= 0 {
		config.Policy.Limit = 100
	}
	if config.Policy.Window <= 0 {
		config.Policy.Window = time.Minute
	}

	backend := "redis"
	if store == nil {
		store = NewMemoryStore()
	}
	if _, ok := store.(*MemoryStore); ok {
		backend = "memory"
	}

	return &Limiter{
		store:   store,
		config:  config,
		backend: backend,
		logger:  logging.OrGlobal(logger).WithFields(logging.String("component", "rate_limiter")),
	}
}

func (l *Limiter) Enabled() bool { return l.config.Enabled }

// Backend is "redis" or "memory".
func (l *Limiter) Backend() string { return l.backend }

// Policy returns the limit applied to every key.
func (l *Limiter) Policy() Policy { return l.config.Policy }

// Check counts one request for key.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	p := l.config.Policy
	usage, err := l.store.Take(ctx, key, p)
	if err != nil {
		return Result{}, err
	}
	return Result{Policy: p, Usage: usage, Reset: time.Now().Add(p.Window)}, nil
}

// Middleware answers 429 once the client identified by keyFunc is over the
// limit. An empty key or a failing store lets the request through.
func (l *Limiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !l.config.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Check(r.Context(), key)
			if err != nil {
				l.logger.WithContext(r.Context()).Warn("Rate limit check failed, allowing request",
					logging.String("key", key),
					logging.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

			if !res.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(res.Window.Seconds())))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, else X-Real-IP, else the
// remote address without its port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// IPKey keys requests on ClientIP.
func IPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}
