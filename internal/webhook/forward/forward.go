// Package forward republishes verified webhook events to message brokers.
//
// Every forwarder is a webhook.Handler guarded by a circuit breaker, so a
// broker outage costs one fast failure per delivery instead of a timeout.
package forward

import (
	"context"
	"encoding/json"
	"time"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/webhook"

	"github.com/lucsky/cuid"
)

// Envelope is the message body every forwarder publishes.
type Envelope struct {
	ID           string          `json:"id"`
	Subscription string          `json:"subscription"`
	Object       string          `json:"object"`
	Entries      []webhook.Entry `json:"entry"`
	ReceivedAt   time.Time       `json:"received_at"`
}

// NewEnvelope wraps event for publication.
func NewEnvelope(subscription string, event *webhook.Event) *Envelope {
	return &Envelope{
		ID:           cuid.New(),
		Subscription: subscription,
		Object:       event.Object,
		Entries:      event.Entries,
		ReceivedAt:   time.Now().UTC(),
	}
}

// Encode marshals the envelope.
func (e *Envelope) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, errors.ValidationError("event cannot be encoded").WithContext("subscription", e.Subscription)
	}
	return body, nil
}

// RoutingKey is "<subscription>.<object>", used by AMQP routing and SNS attributes.
func (e *Envelope) RoutingKey() string {
	return e.Subscription + "." + e.Object
}

// publishFunc sends one encoded envelope.
type publishFunc func(ctx context.Context, env *Envelope, body []byte) error

// forwarder holds what every broker-specific forwarder shares.
type forwarder struct {
	name    string
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
	publish publishFunc
}

func newForwarder(name string, breakers *circuitbreaker.Manager, logger logging.Logger, publish publishFunc) forwarder {
	logger = logging.OrGlobal(logger)
	if breakers == nil {
		breakers = circuitbreaker.NewManager(logger)
	}
	return forwarder{
		name:    name,
		breaker: breakers.Breaker("forward-"+name, circuitbreaker.Forwarder),
		logger:  logger.WithFields(logging.String("forwarder", name)),
		publish: publish,
	}
}

// Name identifies the forwarder in dispatcher logs.
func (f *forwarder) Name() string {
	return f.name
}

// HandleEvent publishes event through the breaker.
func (f *forwarder) HandleEvent(ctx context.Context, subscription string, event *webhook.Event) error {
	env := NewEnvelope(subscription, event)
	body, err := env.Encode()
	if err != nil {
		return err
	}

	err = f.breaker.Execute(ctx, func(ctx context.Context) error {
		return f.publish(ctx, env, body)
	})
	if err != nil {
		return err
	}

	f.logger.WithContext(ctx).Debug("Event forwarded",
		logging.String("message_id", env.ID),
		logging.String("routing_key", env.RoutingKey()),
	)
	return nil
}
