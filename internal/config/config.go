package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the main runtime configuration.
type Config struct {
	Env      string         `yaml:"env"`
	LogLevel string         `yaml:"logLevel"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Outbox   OutboxConfig   `yaml:"outbox"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	TimeoutMs       int    `yaml:"timeoutMs"`
	JWTSecret       string `yaml:"jwtSecret"`
	SessionTTLHours int    `yaml:"sessionTTLHours"`
}

type OutboxConfig struct {
	DispatchIntervalMs int `yaml:"dispatchIntervalMs"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Env:      "development",
		LogLevel: "info",
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Path: "orders.db"},
		Auth: AuthConfig{
			TimeoutMs:       500,
			JWTSecret:       "order-api-secret-key",
			SessionTTLHours: 24,
		},
		Outbox: OutboxConfig{DispatchIntervalMs: 5000},
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env
// vars if present.
func LoadWithEnvOverrides(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ORDER_API_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
}

// Validate ensures required fields are present.
func Validate(cfg Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required (or ORDER_API_JWT_SECRET)")
	}
	if cfg.Auth.TimeoutMs <= 0 {
		return errors.New("auth.timeoutMs must be > 0")
	}
	if cfg.Outbox.DispatchIntervalMs <= 0 {
		return errors.New("outbox.dispatchIntervalMs must be > 0")
	}
	return nil
}
