// ABOUTME: Configuration loading and parsing for crew-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete crew-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sessions SessionsConfig `yaml:"sessions"`
	Identity IdentityConfig `yaml:"identity"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds session database configuration.
// A path of ":memory:" selects the in-memory store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionsConfig holds session behavior configuration
type SessionsConfig struct {
	// SerializeTurns queues concurrent turns on the same session instead
	// of letting their state writes race (last-writer-wins). Off by
	// default.
	SerializeTurns bool `yaml:"serialize_turns"`
}

// IdentityConfig holds identity directory configuration
type IdentityConfig struct {
	Latency time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	LatencyRaw string `yaml:"latency"`

	// Users seeds the directory; empty means the built-in employee set.
	Users []UserConfig `yaml:"users"`
}

// UserConfig is one directory entry
type UserConfig struct {
	UserID     string `yaml:"user_id"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Email      string `yaml:"email"`
	JobTitle   string `yaml:"job_title"`
	Phone      string `yaml:"phone"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Trace enables the colored per-turn console trace.
	Trace bool `yaml:"trace"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{HTTPAddr: ":8000"},
		Database: DatabaseConfig{Path: "data/sessions.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text", Trace: true},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Identity.LatencyRaw != "" {
		cfg.Identity.Latency, err = time.ParseDuration(cfg.Identity.LatencyRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing identity.latency %q: %w", cfg.Identity.LatencyRaw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
