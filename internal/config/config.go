// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port           int      `env:"PORT" envDefault:"3000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	// Text generation
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ParamPrefix   string `env:"PARAM_PREFIX"`

	// Sessions
	SessionTable   string        `env:"SESSION_TABLE"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	MaxInputLength int           `env:"MAX_INPUT_LENGTH" envDefault:"4000"`

	// Gateway. An empty endpoint serves replies in-process.
	GenerateEndpoint string        `env:"GENERATE_ENDPOINT"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"90s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and required combinations. A missing AI credential
// is not an error here; see HasCredentialSource.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if strings.TrimSpace(c.OpenAIModel) == "" {
		return errors.New("OPENAI_MODEL cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.MaxInputLength <= 0 {
		return errors.New("MAX_INPUT_LENGTH must be > 0")
	}
	if c.GatewayTimeout < 0 {
		return errors.New("GATEWAY_TIMEOUT cannot be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// HasCredentialSource reports whether an AI credential is configured either
// directly or through the parameter store.
func (c *Config) HasCredentialSource() bool {
	return c.OpenAIAPIKey != "" || c.ParamPrefix != ""
}

// RemoteGateway reports whether replies are fetched from another process.
func (c *Config) RemoteGateway() bool {
	return strings.TrimSpace(c.GenerateEndpoint) != ""
}

func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}
