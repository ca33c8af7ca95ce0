package forward

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/webhook"

	"cloud.google.com/go/pubsub"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ webhook.Handler = (*SQSForwarder)(nil)
var _ webhook.Handler = (*KafkaForwarder)(nil)
var _ webhook.Handler = (*PubSubForwarder)(nil)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func TestSQSForwarder(t *testing.T) {
	t.Run("standard queue", func(t *testing.T) {
		client := &fakeSQS{}
		url := "https://sqs.us-east-1.amazonaws.com/123456789012/canvas-events"
		f := NewSQSForwarder(client, url, nil, logging.NewNopLogger())
		assert.Equal(t, "sqs", f.Name())

		require.NoError(t, f.HandleEvent(context.Background(), "page-updates", testEvent(t)))

		require.Len(t, client.inputs, 1)
		input := client.inputs[0]
		assert.Equal(t, url, aws.ToString(input.QueueUrl))
		assert.Nil(t, input.MessageGroupId)
		assert.Equal(t, "page", aws.ToString(input.MessageAttributes["object"].StringValue))

		env := decodeEnvelope(t, []byte(aws.ToString(input.MessageBody)))
		assert.Equal(t, env.ID, aws.ToString(input.MessageAttributes["message_id"].StringValue))
	})

	t.Run("fifo queue", func(t *testing.T) {
		client := &fakeSQS{}
		f := NewSQSForwarder(client, "https://sqs.us-east-1.amazonaws.com/1/canvas-events.fifo", nil, logging.NewNopLogger())

		require.NoError(t, f.HandleEvent(context.Background(), "page-updates", testEvent(t)))

		input := client.inputs[0]
		assert.Equal(t, "page-updates", aws.ToString(input.MessageGroupId))
		assert.Equal(t, aws.ToString(input.MessageAttributes["message_id"].StringValue), aws.ToString(input.MessageDeduplicationId))
	})

	t.Run("send failure", func(t *testing.T) {
		f := NewSQSForwarder(&fakeSQS{err: stderrors.New("access denied")}, "https://sqs/q", nil, logging.NewNopLogger())
		err := f.HandleEvent(context.Background(), "page-updates", testEvent(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send to SQS")
	})
}

// fakeProducer answers every Produce with a delivery report.
type fakeProducer struct {
	messages   []*kafka.Message
	produceErr error
	deliverErr error
	silent     bool
	closed     bool
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	if p.produceErr != nil {
		return p.produceErr
	}
	p.messages = append(p.messages, msg)
	if p.silent {
		return nil
	}

	report := *msg
	report.TopicPartition.Error = p.deliverErr
	go func() { deliveryChan <- &report }()
	return nil
}

func (p *fakeProducer) Close() {
	p.closed = true
}

func TestKafkaForwarder(t *testing.T) {
	_, err := NewKafkaForwarder(&fakeProducer{}, "", nil, logging.NewNopLogger())
	require.Error(t, err)

	producer := &fakeProducer{}
	f, err := NewKafkaForwarder(producer, "canvas-events", nil, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "kafka", f.Name())

	require.NoError(t, f.HandleEvent(context.Background(), "page-updates", testEvent(t)))

	require.Len(t, producer.messages, 1)
	msg := producer.messages[0]
	assert.Equal(t, "canvas-events", *msg.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, msg.TopicPartition.Partition)
	assert.Equal(t, []byte("page-updates"), msg.Key)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	env := decodeEnvelope(t, msg.Value)
	assert.Equal(t, env.ID, headers["message_id"])
	assert.Equal(t, "page", headers["object"])

	require.NoError(t, f.Close())
	assert.True(t, producer.closed)
}

func TestKafkaForwarder_Failures(t *testing.T) {
	t.Run("produce rejected", func(t *testing.T) {
		f, err := NewKafkaForwarder(&fakeProducer{produceErr: stderrors.New("queue full")}, "t", nil, logging.NewNopLogger())
		require.NoError(t, err)
		err = f.HandleEvent(context.Background(), "page-updates", testEvent(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to produce to Kafka")
	})

	t.Run("delivery failed", func(t *testing.T) {
		f, err := NewKafkaForwarder(&fakeProducer{deliverErr: stderrors.New("leader not available")}, "t", nil, logging.NewNopLogger())
		require.NoError(t, err)
		err = f.HandleEvent(context.Background(), "page-updates", testEvent(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Kafka delivery failed")
	})

	t.Run("no delivery report before deadline", func(t *testing.T) {
		f, err := NewKafkaForwarder(&fakeProducer{silent: true}, "t", circuitbreaker.NewManager(logging.NewNopLogger()), logging.NewNopLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err = f.HandleEvent(ctx, "page-updates", testEvent(t))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(KafkaConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers are required")
}

type fakeTopic struct {
	messages []*pubsub.Message
	err      error
}

func (t *fakeTopic) Publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	t.messages = append(t.messages, msg)
	return "server-1", nil
}

func TestPubSubForwarder(t *testing.T) {
	topic := &fakeTopic{}
	f := NewPubSubForwarder(topic, "canvas-events", nil, logging.NewNopLogger())
	assert.Equal(t, "pubsub", f.Name())

	require.NoError(t, f.HandleEvent(context.Background(), "page-updates", testEvent(t)))

	require.Len(t, topic.messages, 1)
	msg := topic.messages[0]
	env := decodeEnvelope(t, msg.Data)
	assert.Equal(t, map[string]string{
		"subscription": "page-updates",
		"object":       "page",
		"message_id":   env.ID,
	}, msg.Attributes)

	assert.NoError(t, f.Close())
}

func TestPubSubForwarder_Error(t *testing.T) {
	f := NewPubSubForwarder(&fakeTopic{err: stderrors.New("permission denied")}, "canvas-events", nil, logging.NewNopLogger())
	err := f.HandleEvent(context.Background(), "page-updates", testEvent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish to Pub/Sub")
}

func TestDialPubSub_RequiresTopic(t *testing.T) {
	_, err := DialPubSub(context.Background(), PubSubConfig{ProjectID: "proj"}, nil, logging.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project and topic are required")
}
