package forward

import (
	"context"
	"strings"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// KafkaProducer is the subset of *kafka.Producer the forwarder uses.
type KafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Close()
}

// KafkaConfig describes the cluster to produce to.
type KafkaConfig struct {
	Brokers          []string
	ClientID         string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
}

// KafkaForwarder produces events to a topic, keyed by subscription so that
// one subscription's events stay ordered within a partition.
type KafkaForwarder struct {
	forwarder
	topic    string
	producer KafkaProducer
}

// NewKafkaProducer creates a producer for config.
func NewKafkaProducer(config KafkaConfig) (*kafka.Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.ConfigError("Kafka brokers are required")
	}
	if config.ClientID == "" {
		config.ClientID = "canvas-gateway"
	}

	kafkaConfig := kafka.ConfigMap{
		"bootstrap.servers": strings.Join(config.Brokers, ","),
		"client.id":         config.ClientID,
		"acks":              "all",
	}
	if config.SecurityProtocol != "" && config.SecurityProtocol != "PLAINTEXT" {
		kafkaConfig["security.protocol"] = config.SecurityProtocol
	}
	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		mechanism := config.SASLMechanism
		if mechanism == "" {
			mechanism = "PLAIN"
		}
		kafkaConfig["sasl.mechanism"] = mechanism
		kafkaConfig["sasl.username"] = config.SASLUsername
		kafkaConfig["sasl.password"] = config.SASLPassword
	}

	producer, err := kafka.NewProducer(&kafkaConfig)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}
	return producer, nil
}

// DialKafka creates a producer for config and a forwarder producing to topic.
func DialKafka(config KafkaConfig, topic string, breakers *circuitbreaker.Manager, logger logging.Logger) (*KafkaForwarder, error) {
	producer, err := NewKafkaProducer(config)
	if err != nil {
		return nil, err
	}
	f, err := NewKafkaForwarder(producer, topic, breakers, logger)
	if err != nil {
		producer.Close()
		return nil, err
	}
	return f, nil
}

// NewKafkaForwarder creates a forwarder producing to topic.
func NewKafkaForwarder(producer KafkaProducer, topic string, breakers *circuitbreaker.Manager, logger logging.Logger) (*KafkaForwarder, error) {
	if topic == "" {
		return nil, errors.ConfigError("Kafka topic is required")
	}
	f := &KafkaForwarder{topic: topic, producer: producer}
	f.forwarder = newForwarder("kafka", breakers, logger, f.send)
	return f, nil
}

// send waits for the delivery report or ctx.
func (f *KafkaForwarder) send(ctx context.Context, env *Envelope, body []byte) error {
	topic := f.topic
	deliveries := make(chan kafka.Event, 1)

	err := f.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(env.Subscription),
		Value:          body,
		Timestamp:      env.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "subscription", Value: []byte(env.Subscription)},
			{Key: "object", Value: []byte(env.Object)},
			{Key: "message_id", Value: []byte(env.ID)},
		},
	}, deliveries)
	if err != nil {
		return errors.ConnectionError("failed to produce to Kafka", err).WithContext("topic", topic)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveries:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.InternalError("unexpected Kafka delivery event", nil).WithContext("event", e.String())
		}
		if m.TopicPartition.Error != nil {
			return errors.ConnectionError("Kafka delivery failed", m.TopicPartition.Error).WithContext("topic", topic)
		}
		return nil
	}
}

// Close flushes and closes the producer.
func (f *KafkaForwarder) Close() error {
	f.producer.Close()
	return nil
}
