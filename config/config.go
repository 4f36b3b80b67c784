package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything the bot reads from the environment
type Config struct {
	TelegramBotToken        string        `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	DatabasePath            string        `envconfig:"DATABASE_PATH" default:"data.sqlite"`
	MaxConcurrentUpdates    int           `envconfig:"MAX_CONCURRENT_UPDATES" default:"16"`
	ConversationIdleTimeout time.Duration `envconfig:"CONVERSATION_IDLE_TIMEOUT" default:"0"`
	LongPollingTimeout      int           `envconfig:"LONG_POLLING_TIMEOUT" default:"30"`
}

// Load reads the optional env file and decodes the environment into Config
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("config: Failed to load env file", "error", err, "path", envFile)
		} else {
			slog.Debug("config: Environment variables loaded from env file", "path", envFile)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("config: Failed to process environment", "error", err)
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is empty", ErrInvalidConfig)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: DATABASE_PATH is empty", ErrInvalidConfig)
	}
	if c.MaxConcurrentUpdates < 1 {
		return fmt.Errorf("%w: MAX_CONCURRENT_UPDATES must be positive", ErrInvalidConfig)
	}
	if c.ConversationIdleTimeout < 0 {
		return fmt.Errorf("%w: CONVERSATION_IDLE_TIMEOUT must not be negative", ErrInvalidConfig)
	}
	if c.LongPollingTimeout < 0 {
		return fmt.Errorf("%w: LONG_POLLING_TIMEOUT must not be negative", ErrInvalidConfig)
	}

	return nil
}
