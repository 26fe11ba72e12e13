package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
env: production
logLevel: debug
server:
  port: "9090"
database:
  path: /var/lib/orders/orders.db
auth:
  timeoutMs: 250
  jwtSecret: file-secret
  sessionTTLHours: 12
outbox:
  dispatchIntervalMs: 1000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Env)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "/var/lib/orders/orders.db", cfg.Database.Path)
	require.Equal(t, 250, cfg.Auth.TimeoutMs)
	require.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	require.Equal(t, 12, cfg.Auth.SessionTTLHours)
	require.Equal(t, 1000, cfg.Outbox.DispatchIntervalMs)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, Default().Auth.TimeoutMs, cfg.Auth.TimeoutMs)
	require.Equal(t, Default().Database.Path, cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  jwtSecret: file-secret
`)

	t.Setenv("ORDER_API_JWT_SECRET", "env-secret")
	t.Setenv("PORT", "3000")

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	require.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	require.Equal(t, "3000", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Default()))

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"non-positive auth timeout", func(c *Config) { c.Auth.TimeoutMs = 0 }},
		{"non-positive dispatch interval", func(c *Config) { c.Outbox.DispatchIntervalMs = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, Validate(cfg))
		})
	}
}
