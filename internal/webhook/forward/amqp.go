package forward

import (
	"context"
	"fmt"
	"net/url"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"

	"github.com/streadway/amqp"
)

// AMQPChannel is the subset of *amqp.Channel the forwarder uses.
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder publishes events to a durable topic exchange, routed by
// "<subscription>.<object>".
type AMQPForwarder struct {
	forwarder
	exchange string
	channel  AMQPChannel
	conn     *amqp.Connection
}

// DialAMQP connects to RabbitMQ and declares exchange.
func DialAMQP(rawURL, exchange string, breakers *circuitbreaker.Manager, logger logging.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(rawURL)
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("failed to connect to %s", redactURL(rawURL)), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.ConnectionError("failed to open AMQP channel", err)
	}

	f, err := NewAMQPForwarder(ch, exchange, breakers, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

// NewAMQPForwarder declares exchange on ch and returns a forwarder publishing to it.
func NewAMQPForwarder(ch AMQPChannel, exchange string, breakers *circuitbreaker.Manager, logger logging.Logger) (*AMQPForwarder, error) {
	if exchange == "" {
		return nil, errors.ConfigError("AMQP exchange is required")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.ConnectionError("failed to declare exchange", err).WithContext("exchange", exchange)
	}

	f := &AMQPForwarder{exchange: exchange, channel: ch}
	f.forwarder = newForwarder("amqp", breakers, logger, f.send)
	return f, nil
}

func (f *AMQPForwarder) send(ctx context.Context, env *Envelope, body []byte) error {
	err := f.channel.Publish(f.exchange, env.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.ReceivedAt,
		Headers: amqp.Table{
			"subscription": env.Subscription,
			"object":       env.Object,
		},
		Body: body,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish to AMQP", err).WithContext("exchange", f.exchange)
	}
	return nil
}

// Close closes the channel and, when dialed, the connection.
func (f *AMQPForwarder) Close() error {
	err := f.channel.Close()
	if f.conn != nil {
		if cerr := f.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// redactURL drops credentials so the URL can be logged.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "amqp://***"
	}
	u.User = nil
	return u.String()
}
