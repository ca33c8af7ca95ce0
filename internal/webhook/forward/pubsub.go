package forward

import (
	"context"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubTopic publishes one message and waits for the server id.
type PubSubTopic interface {
	Publish(ctx context.Context, msg *pubsub.Message) (string, error)
}

// PubSubConfig selects the project, topic and credentials. Without
// credentials Application Default Credentials are used.
type PubSubConfig struct {
	ProjectID       string
	TopicID         string
	CredentialsFile string
}

// PubSubForwarder publishes events to a Google Cloud Pub/Sub topic.
type PubSubForwarder struct {
	forwarder
	topicID string
	topic   PubSubTopic
	close   func() error
}

type pubsubTopic struct {
	topic *pubsub.Topic
}

func (t pubsubTopic) Publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	return t.topic.Publish(ctx, msg).Get(ctx)
}

// DialPubSub connects to Pub/Sub and checks that the topic exists.
func DialPubSub(ctx context.Context, config PubSubConfig, breakers *circuitbreaker.Manager, logger logging.Logger) (*PubSubForwarder, error) {
	if config.ProjectID == "" || config.TopicID == "" {
		return nil, errors.ConfigError("Pub/Sub project and topic are required")
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	topic := client.Topic(config.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to check topic existence", err)
	}
	if !exists {
		client.Close()
		return nil, errors.ConfigError("Pub/Sub topic does not exist").WithContext("topic", config.TopicID)
	}

	f := NewPubSubForwarder(pubsubTopic{topic: topic}, config.TopicID, breakers, logger)
	f.close = func() error {
		topic.Stop()
		return client.Close()
	}
	return f, nil
}

// NewPubSubForwarder creates a forwarder publishing through topic.
func NewPubSubForwarder(topic PubSubTopic, topicID string, breakers *circuitbreaker.Manager, logger logging.Logger) *PubSubForwarder {
	f := &PubSubForwarder{topicID: topicID, topic: topic}
	f.forwarder = newForwarder("pubsub", breakers, logger, f.send)
	return f
}

func (f *PubSubForwarder) send(ctx context.Context, env *Envelope, body []byte) error {
	_, err := f.topic.Publish(ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"subscription": env.Subscription,
			"object":       env.Object,
			"message_id":   env.ID,
		},
	})
	if err != nil {
		return errors.ConnectionError("failed to publish to Pub/Sub", err).WithContext("topic", f.topicID)
	}
	return nil
}

// Close stops the topic and closes the client.
func (f *PubSubForwarder) Close() error {
	if f.close == nil {
		return nil
	}
	return f.close()
}
