package forward

import (
	"context"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"
)

// RedisPublisher is satisfied by *redis.Client.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisForwarder publishes events on a Redis pub/sub channel.
type RedisForwarder struct {
	forwarder
	channel string
}

// NewRedisForwarder creates a forwarder publishing on channel.
func NewRedisForwarder(client RedisPublisher, channel string, breakers *circuitbreaker.Manager, logger logging.Logger) *RedisForwarder {
	f := &RedisForwarder{channel: channel}
	f.forwarder = newForwarder("redis", breakers, logger, func(ctx context.Context, env *Envelope, body []byte) error {
		if err := client.Publish(ctx, channel, body); err != nil {
			return errors.ConnectionError("failed to publish to Redis", err).WithContext("channel", channel)
		}
		return nil
	})
	return f
}

// Channel returns the pub/sub channel events are published on.
func (f *RedisForwarder) Channel() string {
	return f.channel
}
