// Package config loads process configuration for the PolyFlow orchestration core.
//
// Values come from environment variables, optionally seeded from a .env file.
// Every tunable has a development-friendly default; only the Postgres chain
// table location is mandatory.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the orchestration daemon.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"POLYFLOW_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Kafka configuration
	Kafka KafkaConfig

	// Orchestrator configuration
	Orchestrator OrchestratorConfig

	// Fee quoting configuration
	Fees FeeConfig

	// Retry configuration
	Retry RetryConfig

	// Notification channels
	Notifications NotificationConfig

	// Event bus sizing
	Events EventBusConfig
}

// DatabaseConfig holds the Postgres connection configuration for the chain
// table and transaction records.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

// RedisConfig holds the optional Redis-backed fee quote store configuration.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig holds the status event sink configuration.
type KafkaConfig struct {
	Enabled          bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"`
	StatusTopic      string `env:"KAFKA_STATUS_TOPIC" envDefault:"polyflow.transaction.status"`
}

// OrchestratorConfig holds the transaction admission and shutdown settings.
type OrchestratorConfig struct {
	MaxConcurrentTransactions int           `env:"ORCHESTRATOR_MAX_CONCURRENT_TRANSACTIONS" envDefault:"10"`
	ShutdownTimeout           time.Duration `env:"ORCHESTRATOR_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// FeeConfig holds the fee quote cache settings.
type FeeConfig struct {
	QuoteTTL time.Duration `env:"FEE_QUOTE_TTL" envDefault:"300s"`
}

// RetryConfig holds the bounded exponential backoff settings.
type RetryConfig struct {
	BaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"5s"`
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
}

// NotificationConfig holds the delivery channel endpoints. Channels with an
// empty endpoint are not registered.
type NotificationConfig struct {
	WebhookURL     string        `env:"NOTIFY_WEBHOOK_URL"`
	WebhookSecret  string        `env:"NOTIFY_WEBHOOK_SECRET"`
	ChatWebhookURL string        `env:"NOTIFY_CHAT_WEBHOOK_URL"`
	RequestTimeout time.Duration `env:"NOTIFY_REQUEST_TIMEOUT" envDefault:"10s"`

	SMTPAddr     string   `env:"NOTIFY_SMTP_ADDR"`
	SMTPUsername string   `env:"NOTIFY_SMTP_USERNAME"`
	SMTPPassword string   `env:"NOTIFY_SMTP_PASSWORD"`
	EmailFrom    string   `env:"NOTIFY_EMAIL_FROM"`
	EmailTo      []string `env:"NOTIFY_EMAIL_TO" envSeparator:","`
}

// EventBusConfig holds the event bus sizing.
type EventBusConfig struct {
	Workers    int `env:"EVENT_BUS_WORKERS" envDefault:"4"`
	BufferSize int `env:"EVENT_BUS_BUFFER_SIZE" envDefault:"256"`
}

// Load reads configuration from the environment, seeding it from a .env file
// when one exists.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Database.URL == "" {
		return errors.New("database url is required")
	}

	if c.Orchestrator.MaxConcurrentTransactions < 1 {
		return errors.New("max concurrent transactions must be at least 1")
	}

	if c.Fees.QuoteTTL <= 0 {
		return errors.New("fee quote ttl must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry max attempts must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 {
		return errors.New("retry base delay must be positive")
	}

	if c.Events.Workers < 1 {
		return errors.New("event bus worker count must be at least 1")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// LogrusLevel returns the configured logging level.
func (c *Config) LogrusLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
