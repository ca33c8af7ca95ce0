// Package config loads the gateway configuration from environment variables
// and validates it before the server starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - TLS_CERT_FILE, TLS_KEY_FILE: serve HTTPS when both are set
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_FORMAT: "console" or "json" (default: console)
//   - LOG_FILE: append logs to this file instead of stdout
//
// Platform App:
//   - APP_ID: platform application id (required)
//   - APP_SECRET: platform application secret (required)
//   - PROVIDER_ID: provider key for stored connections (default: facebook)
//   - CANVAS_PAGE_URL: public canvas page of the app (required)
//   - OAUTH_DIALOG_URL: authorization dialog base (default: https://www.facebook.com/dialog/oauth)
//   - OAUTH_SCOPE: comma-separated permissions to request
//   - POST_SIGN_IN_URL: where a completed sign-in lands (default: /)
//   - POST_DECLINE_URL: where a declined authorization lands (default: /canvas/declined)
//   - CANVAS_AUTO_SIGN_UP: create local users for unknown platform users (default: true)
//
// Webhooks:
//   - WEBHOOK_VERIFY_TOKENS: subscription tokens as "name=token,name2=token2"
//   - MAX_BODY_BYTES: largest accepted callback body (default: 1048576)
//
// Sessions and Security:
//   - SESSION_SECRET: JWT signing secret (required, minimum 32 characters)
//   - SESSION_TTL: session lifetime (default: 24h)
//   - SESSION_COOKIE: session cookie name (default: session)
//   - CONFIG_ENCRYPTION_KEY: passphrase encrypting stored access tokens (required)
//   - TOKEN_SWEEP_SCHEDULE: cron schedule clearing expired access tokens (default: @every 1h);
//     "off" disables the sweep
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite", "postgres" or "memory" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./canvas_gateway.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis Configuration (optional):
//   - REDIS_ADDRESS: Redis server address; session revocation needs it and rate limits
//     are shared across instances through it
//   - REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE (default: 10)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: requests per window per client (default: 100)
//   - RATE_LIMIT_WINDOW: window length (default: 60s)
//
// Event Forwarding (each optional):
//   - FORWARD_REDIS_CHANNEL: publish events on this Redis channel
//   - FORWARD_AMQP_URL, FORWARD_AMQP_EXCHANGE: publish events to RabbitMQ
//   - FORWARD_SNS_TOPIC_ARN, AWS_REGION: publish events to SNS
//   - FORWARD_SQS_QUEUE_URL: send events to SQS (".fifo" queues are grouped by subscription)
//   - AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN: static SNS/SQS credentials;
//     without them the default AWS credential chain is used
//   - FORWARD_KAFKA_BROKERS, FORWARD_KAFKA_TOPIC (default: canvas-events): produce events to Kafka
//   - FORWARD_KAFKA_SECURITY_PROTOCOL, FORWARD_KAFKA_SASL_MECHANISM,
//     FORWARD_KAFKA_SASL_USERNAME, FORWARD_KAFKA_SASL_PASSWORD
//   - FORWARD_PUBSUB_PROJECT_ID, FORWARD_PUBSUB_TOPIC, FORWARD_PUBSUB_CREDENTIALS_FILE:
//     publish events to Google Cloud Pub/Sub
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"canvas-gateway/internal/common/validation"
)

// Config holds all configuration values for the gateway.
// The env tags name the variable each field is read from.
type Config struct {
	Port        string `env:"PORT"`
	TLSCertFile string `env:"TLS_CERT_FILE" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `env:"TLS_KEY_FILE" validate:"required_with=TLSCertFile"`
	LogLevel    string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT" validate:"oneof=console json"`
	LogFile     string `env:"LOG_FILE"`

	AppID          string `env:"APP_ID" validate:"required"`
	AppSecret      string `env:"APP_SECRET" validate:"required"`
	ProviderID     string `env:"PROVIDER_ID" validate:"required"`
	CanvasPageURL  string `env:"CANVAS_PAGE_URL" validate:"required,url"`
	OAuthDialogURL string `env:"OAUTH_DIALOG_URL" validate:"required,url"`
	OAuthScope     string `env:"OAUTH_SCOPE"`
	PostSignInURL  string `env:"POST_SIGN_IN_URL" validate:"redirect_target"`
	PostDeclineURL string `env:"POST_DECLINE_URL" validate:"redirect_target"`
	AutoSignUp     bool   `env:"CANVAS_AUTO_SIGN_UP"`

	WebhookVerifyTokens string `env:"WEBHOOK_VERIFY_TOKENS"`
	MaxBodyBytes        string `env:"MAX_BODY_BYTES"`

	SessionSecret string `env:"SESSION_SECRET" validate:"required,min=32"`
	SessionTTL    string `env:"SESSION_TTL"`
	SessionCookie string `env:"SESSION_COOKIE" validate:"required"`
	EncryptionKey string `env:"CONFIG_ENCRYPTION_KEY" validate:"required"`
	SweepSchedule string `env:"TOKEN_SWEEP_SCHEDULE" validate:"required,schedule"`

	DatabaseType     string `env:"DATABASE_TYPE" validate:"oneof=sqlite postgres postgresql memory"`
	DatabasePath     string `env:"DATABASE_PATH"`
	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT"`
	PostgresDB       string `env:"POSTGRES_DB"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `env:"POSTGRES_SSL_MODE"`

	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       string `env:"REDIS_DB"`
	RedisPoolSize string `env:"REDIS_POOL_SIZE"`

	RateLimitEnabled bool   `env:"RATE_LIMIT_ENABLED"`
	RateLimitDefault string `env:"RATE_LIMIT_DEFAULT"`
	RateLimitWindow  string `env:"RATE_LIMIT_WINDOW"`

	ForwardRedisChannel string `env:"FORWARD_REDIS_CHANNEL"`
	ForwardAMQPURL      string `env:"FORWARD_AMQP_URL"`
	ForwardAMQPExchange string `env:"FORWARD_AMQP_EXCHANGE"`
	ForwardSNSTopicARN  string `env:"FORWARD_SNS_TOPIC_ARN"`
	AWSRegion           string `env:"AWS_REGION"`
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID" validate:"required_with=AWSSecretAccessKey"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY" validate:"required_with=AWSAccessKeyID"`
	AWSSessionToken     string `env:"AWS_SESSION_TOKEN"`
	ForwardSQSQueueURL  string `env:"FORWARD_SQS_QUEUE_URL" validate:"omitempty,url"`

	ForwardKafkaBrokers          string `env:"FORWARD_KAFKA_BROKERS"`
	ForwardKafkaTopic            string `env:"FORWARD_KAFKA_TOPIC"`
	ForwardKafkaSecurityProtocol string `env:"FORWARD_KAFKA_SECURITY_PROTOCOL" validate:"oneof=PLAINTEXT SSL SASL_PLAINTEXT SASL_SSL"`
	ForwardKafkaSASLMechanism    string `env:"FORWARD_KAFKA_SASL_MECHANISM" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	ForwardKafkaSASLUsername     string `env:"FORWARD_KAFKA_SASL_USERNAME"`
	ForwardKafkaSASLPassword     string `env:"FORWARD_KAFKA_SASL_PASSWORD"`

	ForwardPubSubProjectID       string `env:"FORWARD_PUBSUB_PROJECT_ID" validate:"required_with=ForwardPubSubTopic"`
	ForwardPubSubTopic           string `env:"FORWARD_PUBSUB_TOPIC" validate:"required_with=ForwardPubSubProjectID"`
	ForwardPubSubCredentialsFile string `env:"FORWARD_PUBSUB_CREDENTIALS_FILE"`
}

// Load creates a Config from environment variables, applying defaults.
// It does not validate; call Validate before use.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
		LogFile:     getEnv("LOG_FILE", ""),

		AppID:          getEnv("APP_ID", ""),
		AppSecret:      getEnv("APP_SECRET", ""),
		ProviderID:     getEnv("PROVIDER_ID", "facebook"),
		CanvasPageURL:  getEnv("CANVAS_PAGE_URL", ""),
		OAuthDialogURL: getEnv("OAUTH_DIALOG_URL", "https://www.facebook.com/dialog/oauth"),
		OAuthScope:     getEnv("OAUTH_SCOPE", ""),
		PostSignInURL:  getEnv("POST_SIGN_IN_URL", "/"),
		PostDeclineURL: getEnv("POST_DECLINE_URL", "/canvas/declined"),
		AutoSignUp:     getBoolEnv("CANVAS_AUTO_SIGN_UP", true),

		WebhookVerifyTokens: getEnv("WEBHOOK_VERIFY_TOKENS", ""),
		MaxBodyBytes:        getEnv("MAX_BODY_BYTES", "1048576"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnv("SESSION_TTL", "24h"),
		SessionCookie: getEnv("SESSION_COOKIE", "session"),
		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),
		SweepSchedule: getEnv("TOKEN_SWEEP_SCHEDULE", "@every 1h"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./canvas_gateway.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "canvas_gateway"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "100"),
		RateLimitWindow:  getEnv("RATE_LIMIT_WINDOW", "60s"),

		ForwardRedisChannel: getEnv("FORWARD_REDIS_CHANNEL", ""),
		ForwardAMQPURL:      getEnv("FORWARD_AMQP_URL", ""),
		ForwardAMQPExchange: getEnv("FORWARD_AMQP_EXCHANGE", "canvas.events"),
		ForwardSNSTopicARN:  getEnv("FORWARD_SNS_TOPIC_ARN", ""),
		AWSRegion:           getEnv("AWS_REGION", ""),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:     getEnv("AWS_SESSION_TOKEN", ""),
		ForwardSQSQueueURL:  getEnv("FORWARD_SQS_QUEUE_URL", ""),

		ForwardKafkaBrokers:          getEnv("FORWARD_KAFKA_BROKERS", ""),
		ForwardKafkaTopic:            getEnv("FORWARD_KAFKA_TOPIC", "canvas-events"),
		ForwardKafkaSecurityProtocol: getEnv("FORWARD_KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		ForwardKafkaSASLMechanism:    getEnv("FORWARD_KAFKA_SASL_MECHANISM", ""),
		ForwardKafkaSASLUsername:     getEnv("FORWARD_KAFKA_SASL_USERNAME", ""),
		ForwardKafkaSASLPassword:     getEnv("FORWARD_KAFKA_SASL_PASSWORD", ""),

		ForwardPubSubProjectID:       getEnv("FORWARD_PUBSUB_PROJECT_ID", ""),
		ForwardPubSubTopic:           getEnv("FORWARD_PUBSUB_TOPIC", ""),
		ForwardPubSubCredentialsFile: getEnv("FORWARD_PUBSUB_CREDENTIALS_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool forms; anything else yields defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required secrets, formats and cross-field dependencies.
// Every problem is reported, not only the first.
func (c *Config) Validate() error {
	v := validation.NewChecker().
		Tags(c).
		Port("PORT", c.Port).
		Positive("MAX_BODY_BYTES", c.MaxBodyBytes).
		Duration("SESSION_TTL", c.SessionTTL, "24h")

	_, err := ParseVerifyTokens(c.WebhookVerifyTokens)
	v.Check(err)

	switch {
	case c.UsesPostgres():
		v.Required("POSTGRES_HOST", c.PostgresHost).
			Required("POSTGRES_DB", c.PostgresDB).
			Required("POSTGRES_USER", c.PostgresUser).
			Port("POSTGRES_PORT", c.PostgresPort)
	case c.DatabaseType == "sqlite":
		v.Required("DATABASE_PATH", c.DatabasePath)
	}

	if c.RedisAddress != "" {
		v.Between("REDIS_DB", c.RedisDB, 0, 15).
			Positive("REDIS_POOL_SIZE", c.RedisPoolSize)
	}

	if c.RateLimitEnabled {
		v.Positive("RATE_LIMIT_DEFAULT", c.RateLimitDefault).
			Duration("RATE_LIMIT_WINDOW", c.RateLimitWindow, "60s")
	}

	v.When(c.ForwardRedisChannel != "", func() error {
		if c.RedisAddress == "" {
			return fmt.Errorf("FORWARD_REDIS_CHANNEL requires REDIS_ADDRESS")
		}
		return nil
	})
	v.When(c.ForwardAMQPURL != "", func() error {
		if !strings.HasPrefix(c.ForwardAMQPURL, "amqp://") && !strings.HasPrefix(c.ForwardAMQPURL, "amqps://") {
			return fmt.Errorf("FORWARD_AMQP_URL must start with amqp:// or amqps://")
		}
		return nil
	})
	v.When(c.ForwardKafkaBrokers != "", func() error {
		if len(c.KafkaBrokers()) == 0 {
			return fmt.Errorf("FORWARD_KAFKA_BROKERS must list at least one host:port")
		}
		if c.ForwardKafkaTopic == "" {
			return fmt.Errorf("FORWARD_KAFKA_TOPIC is required with FORWARD_KAFKA_BROKERS")
		}
		return nil
	})
	v.When(c.ForwardSNSTopicARN != "", func() error {
		if !strings.HasPrefix(c.ForwardSNSTopicARN, "arn:") {
			return fmt.Errorf("FORWARD_SNS_TOPIC_ARN must be an ARN")
		}
		return nil
	})

	return v.Err()
}

// UsesPostgres reports whether the connection repository lives in PostgreSQL
func (c *Config) UsesPostgres() bool {
	return c.DatabaseType == "postgres" || c.DatabaseType == "postgresql"
}

// VerifyTokens returns the subscription token table. Call after Validate.
func (c *Config) VerifyTokens() map[string]string {
	tokens, _ := ParseVerifyTokens(c.WebhookVerifyTokens)
	return tokens
}

// MaxBodySize returns MAX_BODY_BYTES as a number. Call after Validate.
func (c *Config) MaxBodySize() int64 {
	n, _ := strconv.ParseInt(c.MaxBodyBytes, 10, 64)
	return n
}

// SessionDuration returns SESSION_TTL. Call after Validate.
func (c *Config) SessionDuration() time.Duration {
	d, _ := time.ParseDuration(c.SessionTTL)
	return d
}

// RateLimit returns the per-window limit and the window length. Call after Validate.
func (c *Config) RateLimit() (int, time.Duration) {
	limit, _ := strconv.Atoi(c.RateLimitDefault)
	window, _ := time.ParseDuration(c.RateLimitWindow)
	return limit, window
}

// KafkaBrokers splits FORWARD_KAFKA_BROKERS, dropping empty items.
func (c *Config) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.ForwardKafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// SweepEnabled reports whether expired tokens are swept on a schedule.
func (c *Config) SweepEnabled() bool {
	return c.SweepSchedule != "off"
}

// Redis returns the database number and pool size. Call after Validate.
func (c *Config) Redis() (db int, poolSize int) {
	db, _ = strconv.Atoi(c.RedisDB)
	poolSize, _ = strconv.Atoi(c.RedisPoolSize)
	return db, poolSize
}

// Scopes splits OAUTH_SCOPE on commas, dropping blanks.
func (c *Config) Scopes() []string {
	var scopes []string
	for _, s := range strings.Split(c.OAuthScope, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// ParseVerifyTokens parses "name=token,name2=token2" into a table keyed by
// subscription name. Blank entries are skipped; duplicates are an error.
func ParseVerifyTokens(raw string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, token, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return nil, fmt.Errorf("WEBHOOK_VERIFY_TOKENS entry %q must be name=token", name)
		}
		if !validation.IsSubscriptionName(name) {
			return nil, fmt.Errorf("WEBHOOK_VERIFY_TOKENS has invalid subscription name %q", name)
		}
		if _, dup := tokens[name]; dup {
			return nil, fmt.Errorf("WEBHOOK_VERIFY_TOKENS lists subscription %q twice", name)
		}
		tokens[name] = token
	}
	return tokens, nil
}

// Subscriptions returns the configured subscription names, sorted
func (c *Config) Subscriptions() []string {
	tokens := c.VerifyTokens()
	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
