package forward

import (
	"context"

	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/common/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSPublisher is the subset of *sns.Client the forwarder uses.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AWSConfig selects the region and credentials for SNS and SQS. Without
// static keys the default AWS credential chain is used.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// SNSForwarder publishes events to an SNS topic.
type SNSForwarder struct {
	forwarder
	topicARN string
	client   SNSPublisher
}

// LoadAWSConfig resolves config into an aws.Config.
func LoadAWSConfig(ctx context.Context, config AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.ConnectionError("failed to load AWS config", err)
	}
	return cfg, nil
}

// NewSNSClient builds an SNS client from config.
func NewSNSClient(ctx context.Context, config AWSConfig) (*sns.Client, error) {
	cfg, err := LoadAWSConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}

// NewSNSForwarder creates a forwarder publishing to topicARN.
func NewSNSForwarder(client SNSPublisher, topicARN string, breakers *circuitbreaker.Manager, logger logging.Logger) *SNSForwarder {
	f := &SNSForwarder{topicARN: topicARN, client: client}
	f.forwarder = newForwarder("sns", breakers, logger, f.send)
	return f
}

func (f *SNSForwarder) send(ctx context.Context, env *Envelope, body []byte) error {
	_, err := f.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(f.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"subscription": {DataType: aws.String("String"), StringValue: aws.String(env.Subscription)},
			"object":       {DataType: aws.String("String"), StringValue: aws.String(env.Object)},
			"message_id":   {DataType: aws.String("String"), StringValue: aws.String(env.ID)},
		},
	})
	if err != nil {
		return errors.ConnectionError("failed to publish to SNS", err).WithContext("topic", f.topicARN)
	}
	return nil
}
