package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"reconciler/internal/logger"
	"reconciler/internal/retry"
)

type Config struct {
	RunAddress              string
	DatabaseURI             string
	SettlementSystemAddress string
	JWTSecret               string

	StripeWebhookSecret string
	SlackWebhookURL     string

	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	SettlementInterval time.Duration
	SettlementBatch    int

	LogLevel  string
	LogFormat string
	LogOutput string
}

// Load reads .env (if present) and the environment. Command-line flags are applied on top by the caller.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RunAddress:              getEnv("RUN_ADDRESS", "localhost:8080"),
		DatabaseURI:             getEnv("DATABASE_URI", "file:reconciler.db?_journal_mode=WAL&_busy_timeout=50&_fk=1"),
		SettlementSystemAddress: getEnv("SETTLEMENT_SYSTEM_ADDRESS", "http://localhost:8081"),
		JWTSecret:               getEnv("JWT_SECRET", "super-secret-jwt-key"),
		StripeWebhookSecret:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SlackWebhookURL:         getEnv("SLACK_WEBHOOK_URL", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "console"),
		LogOutput:               getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if cfg.RetryMaxAttempts, err = getEnvInt("RETRY_MAX_ATTEMPTS", retry.DefaultMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.SettlementBatch, err = getEnvInt("SETTLEMENT_BATCH", 5); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = getEnvDuration("RETRY_BASE_DELAY", retry.DefaultBaseDelay); err != nil {
		return nil, err
	}
	if cfg.SettlementInterval, err = getEnvDuration("SETTLEMENT_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must not be negative")
	}
	if c.SettlementInterval <= 0 {
		return fmt.Errorf("SETTLEMENT_INTERVAL must be positive")
	}
	if c.SettlementBatch <= 0 {
		return fmt.Errorf("SETTLEMENT_BATCH must be positive")
	}
	return nil
}

// RetryPolicy builds the write retry policy; the caller supplies the transient classifier.
func (c *Config) RetryPolicy(retryable func(error) bool) retry.Policy {
	p := retry.New(retryable)
	p.MaxAttempts = c.RetryMaxAttempts
	p.BaseDelay = c.RetryBaseDelay
	return p
}

func (c *Config) LoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: c.LogOutput,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
