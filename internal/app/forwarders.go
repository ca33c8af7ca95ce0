package app

import (
	"context"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/webhook/forward"
)

// initializeForwarders registers a forwarder for every configured sink.
// A sink that cannot be reached at startup is skipped with a warning;
// deliveries are still acknowledged and logged.
func (app *App) initializeForwarders(ctx context.Context) {
	logger := logging.GetGlobalLogger()

	if channel := app.Config.ForwardRedisChannel; channel != "" {
		if app.RedisClient == nil {
			app.Logger.Warn("Redis forwarding configured but Redis is unavailable",
				logging.String("channel", channel))
		} else {
			app.Dispatcher.Register(forward.NewRedisForwarder(app.RedisClient, channel, app.Breakers, logger))
			app.Logger.Info("Forwarding: Redis", logging.String("channel", channel))
		}
	}

	if app.Config.ForwardAMQPURL != "" {
		f, err := forward.DialAMQP(app.Config.ForwardAMQPURL, app.Config.ForwardAMQPExchange, app.Breakers, logger)
		if err != nil {
			app.Logger.Warn("AMQP forwarding unavailable", logging.Err(err))
		} else {
			app.Dispatcher.Register(f)
			app.closers = append(app.closers, f)
			app.Logger.Info("Forwarding: AMQP", logging.String("exchange", app.Config.ForwardAMQPExchange))
		}
	}

	awsConfig := forward.AWSConfig{
		Region:          app.Config.AWSRegion,
		AccessKeyID:     app.Config.AWSAccessKeyID,
		SecretAccessKey: app.Config.AWSSecretAccessKey,
		SessionToken:    app.Config.AWSSessionToken,
	}

	if arn := app.Config.ForwardSNSTopicARN; arn != "" {
		client, err := forward.NewSNSClient(ctx, awsConfig)
		if err != nil {
			app.Logger.Warn("SNS forwarding unavailable", logging.Err(err))
		} else {
			app.Dispatcher.Register(forward.NewSNSForwarder(client, arn, app.Breakers, logger))
			app.Logger.Info("Forwarding: SNS", logging.String("topic_arn", arn))
		}
	}

	if queueURL := app.Config.ForwardSQSQueueURL; queueURL != "" {
		client, err := forward.NewSQSClient(ctx, awsConfig)
		if err != nil {
			app.Logger.Warn("SQS forwarding unavailable", logging.Err(err))
		} else {
			app.Dispatcher.Register(forward.NewSQSForwarder(client, queueURL, app.Breakers, logger))
			app.Logger.Info("Forwarding: SQS", logging.String("queue_url", queueURL))
		}
	}

	if brokers := app.Config.KafkaBrokers(); len(brokers) > 0 {
		f, err := forward.DialKafka(forward.KafkaConfig{
			Brokers:          brokers,
			SecurityProtocol: app.Config.ForwardKafkaSecurityProtocol,
			SASLMechanism:    app.Config.ForwardKafkaSASLMechanism,
			SASLUsername:     app.Config.ForwardKafkaSASLUsername,
			SASLPassword:     app.Config.ForwardKafkaSASLPassword,
		}, app.Config.ForwardKafkaTopic, app.Breakers, logger)
		if err != nil {
			app.Logger.Warn("Kafka forwarding unavailable", logging.Err(err))
		} else {
			app.Dispatcher.Register(f)
			app.closers = append(app.closers, f)
			app.Logger.Info("Forwarding: Kafka", logging.String("topic", app.Config.ForwardKafkaTopic))
		}
	}

	if app.Config.ForwardPubSubProjectID != "" {
		f, err := forward.DialPubSub(ctx, forward.PubSubConfig{
			ProjectID:       app.Config.ForwardPubSubProjectID,
			TopicID:         app.Config.ForwardPubSubTopic,
			CredentialsFile: app.Config.ForwardPubSubCredentialsFile,
		}, app.Breakers, logger)
		if err != nil {
			app.Logger.Warn("Pub/Sub forwarding unavailable", logging.Err(err))
		} else {
			app.Dispatcher.Register(f)
			app.closers = append(app.closers, f)
			app.Logger.Info("Forwarding: Pub/Sub", logging.String("topic", app.Config.ForwardPubSubTopic))
		}
	}
}
