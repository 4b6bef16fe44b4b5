package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ALLOWED_ORIGINS", "LOG_LEVEL", "OPENAI_API_KEY", "OPENAI_MODEL",
		"PARAM_PREFIX", "SESSION_TABLE", "SESSION_TTL", "MAX_INPUT_LENGTH", "GENERATE_ENDPOINT", "GATEWAY_TIMEOUT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.Equal(t, 90*time.Second, cfg.GatewayTimeout)
	require.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	require.False(t, cfg.HasCredentialSource())
	require.False(t, cfg.RemoteGateway())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173,https://example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PARAM_PREFIX", "/requirements-agent")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("GENERATE_ENDPOINT", "http://intermediary:3000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, []string{"http://localhost:5173", "https://example.com"}, cfg.AllowedOrigins)
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.True(t, cfg.HasCredentialSource())
	require.True(t, cfg.RemoteGateway())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 3000, OpenAIModel: "m", SessionTTL: time.Hour, MaxInputLength: 10, LogLevel: "info"}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"port":      func(c *Config) { c.Port = 70000 },
		"model":     func(c *Config) { c.OpenAIModel = " " },
		"ttl":       func(c *Config) { c.SessionTTL = 0 },
		"max input": func(c *Config) { c.MaxInputLength = 0 },
		"timeout":   func(c *Config) { c.GatewayTimeout = -time.Second },
		"log level": func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			require.Error(t, c.Validate())
		})
	}
}
