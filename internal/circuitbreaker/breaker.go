// Package circuitbreaker stops event forwarders from waiting on a broker that
// keeps failing. Breakers are sony/gobreaker instances.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"

	"github.com/sony/gobreaker"
)

// ErrOpen is wrapped by Execute when the breaker rejects a call.
var ErrOpen = stderrors.New("circuit breaker is open")

// Settings tune a breaker. Zero fields take the Default value.
type Settings struct {
	// TripAfter consecutive failures open the breaker.
	TripAfter int
	// Cooldown is how long an open breaker rejects calls before probing.
	Cooldown time.Duration
	// Probes is the number of calls let through while half-open.
	Probes int
}

// Default applies to breakers created without explicit settings.
var Default = Settings{TripAfter: 5, Cooldown: time.Minute, Probes: 1}

// Forwarder trips sooner and probes more often than Default: a stalled broker
// holds up every delivery behind it.
var Forwarder = Settings{TripAfter: 3, Cooldown: 30 * time.Second, Probes: 1}

func (s Settings) withDefaults() Settings {
	if s.TripAfter <= 0 {
		s.TripAfter = Default.TripAfter
	}
	if s.Cooldown <= 0 {
		s.Cooldown = Default.Cooldown
	}
	if s.Probes <= 0 {
		s.Probes = Default.Probes
	}
	return s
}

// Stats describes a breaker for /health.
type Stats struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	TotalFailures       uint32 `json:"total_failures"`
	TotalSuccesses      uint32 `json:"total_successes"`
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New creates the breaker called name.
func New(name string, s Settings, logger logging.Logger) *Breaker {
	s = s.withDefaults()
	logger = logging.OrGlobal(logger).WithFields(logging.String("breaker", name))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(s.Probes),
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(s.TripAfter)
		},
		// a malformed event is rejected by the broker every time; it says
		// nothing about the broker's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.IsType(err, errors.ErrTypeValidation)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			fields := []logging.Field{
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			}
			if to == gobreaker.StateOpen {
				logger.Warn("Circuit opened", append(fields, logging.Duration("cooldown", s.Cooldown))...)
				return
			}
			logger.Info("Circuit state changed", fields...)
		},
	})
	return &Breaker{name: name, cb: cb}
}

func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the breaker is open. A ctx that is already done is
// returned as is and does not count against the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.ConnectionError(fmt.Sprintf("%s: call rejected", b.name), fmt.Errorf("%w: %v", ErrOpen, err))
	}
	return err
}

// State is "closed", "open" or "half-open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func (b *Breaker) Stats() Stats {
	c := b.cb.Counts()
	return Stats{
		Name:                b.name,
		State:               b.State(),
		ConsecutiveFailures: c.ConsecutiveFailures,
		TotalFailures:       c.TotalFailures,
		TotalSuccesses:      c.TotalSuccesses,
	}
}
