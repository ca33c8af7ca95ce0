package forward

import (
	"context"
	"strings"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSSender is the subset of *sqs.Client the forwarder uses.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSForwarder sends events to an SQS queue. FIFO queues are grouped by
// subscription and deduplicated by message id.
type SQSForwarder struct {
	forwarder
	queueURL string
	client   SQSSender
}

// NewSQSClient builds an SQS client from config.
func NewSQSClient(ctx context.Context, config AWSConfig) (*sqs.Client, error) {
	cfg, err := LoadAWSConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(cfg), nil
}

// NewSQSForwarder creates a forwarder sending to queueURL.
func NewSQSForwarder(client SQSSender, queueURL string, breakers *circuitbreaker.Manager, logger logging.Logger) *SQSForwarder {
	f := &SQSForwarder{queueURL: queueURL, client: client}
	f.forwarder = newForwarder("sqs", breakers, logger, f.send)
	return f
}

func (f *SQSForwarder) fifo() bool {
	return strings.HasSuffix(f.queueURL, ".fifo")
}

func (f *SQSForwarder) send(ctx context.Context, env *Envelope, body []byte) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(f.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"subscription": {DataType: aws.String("String"), StringValue: aws.String(env.Subscription)},
			"object":       {DataType: aws.String("String"), StringValue: aws.String(env.Object)},
			"message_id":   {DataType: aws.String("String"), StringValue: aws.String(env.ID)},
		},
	}
	if f.fifo() {
		input.MessageGroupId = aws.String(env.Subscription)
		input.MessageDeduplicationId = aws.String(env.ID)
	}

	if _, err := f.client.SendMessage(ctx, input); err != nil {
		return errors.ConnectionError("failed to send to SQS", err).WithContext("queue", f.queueURL)
	}
	return nil
}
