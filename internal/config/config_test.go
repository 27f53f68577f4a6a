package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, ":8080", cfg.ServerPort)
	require.NotEmpty(t, cfg.PostgresURL)
	require.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("JWT_SECRET", "env-secret")
	cfg := Load()
	require.Equal(t, ":9999", cfg.ServerPort)
	require.Equal(t, "env-secret", cfg.JWTSecret)
}
