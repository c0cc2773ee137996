// Package config provides configuration loading for daysim.
// It supports loading from a YAML file and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all daysim configuration settings.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Remote     RemoteConfig     `json:"remote" yaml:"remote"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`

	// AdminKey guards mutating endpoints. Empty disables the check.
	// Supports ${VAR} syntax for env vars.
	AdminKey string `json:"admin_key,omitempty" yaml:"admin_key,omitempty"`

	// CORSOrigins is a comma-separated allow list added to the localhost
	// dev origins, which are always allowed.
	CORSOrigins string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// SimulationConfig configures the clock and the local population spawner.
type SimulationConfig struct {
	// TickInterval is the wall time per simulated step at speed 1.
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`
	Speed        float64       `json:"speed" yaml:"speed"`

	Seed   int64   `json:"seed" yaml:"seed"`
	Jitter float64 `json:"jitter" yaml:"jitter"` // Degrees of coordinate noise per agent

	DefaultAgents int `json:"default_agents" yaml:"default_agents"`
	MaxAgents     int `json:"max_agents" yaml:"max_agents"`
}

// RemoteConfig configures the remote start-day service.
type RemoteConfig struct {
	// BaseURL of the worker; empty disables the remote source and proxy.
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	// Path to the database file; empty disables journaling.
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level: "debug", "info" (default), "warn", or "error".
	Level string `json:"level" yaml:"level"`

	// Format: "text", "json", or "auto" (text on a terminal, json otherwise).
	Format string `json:"format" yaml:"format"`
}

// RedactedAdminKey returns the admin key with most characters masked.
func (c ServerConfig) RedactedAdminKey() string {
	if c.AdminKey == "" {
		return ""
	}
	if len(c.AdminKey) < 12 {
		return "(set)"
	}
	return c.AdminKey[:4] + "..." + c.AdminKey[len(c.AdminKey)-4:]
}

// String implements fmt.Stringer so the admin key never reaches a log line.
func (c ServerConfig) String() string {
	return fmt.Sprintf("ServerConfig{Port:%d, AdminKey:%s, CORSOrigins:%q}",
		c.Port, c.RedactedAdminKey(), c.CORSOrigins)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Simulation: SimulationConfig{
			TickInterval:  time.Second,
			Speed:         1,
			Seed:          42,
			Jitter:        0,
			DefaultAgents: 10,
			MaxAgents:     50,
		},
		Remote: RemoteConfig{
			BaseURL: "https://bus.orville.wang",
			Timeout: 15 * time.Second,
		},
		Journal: JournalConfig{
			Path: "data/daysim.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds configuration from defaults, then the YAML file at path (if
// path is non-empty), then environment variables.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields the
// file omits keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Server.AdminKey = expandEnvVars(config.Server.AdminKey)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.Simulation.TickInterval)
	}
	if c.Simulation.Speed <= 0 || c.Simulation.Speed > 1000 {
		return fmt.Errorf("speed must be in (0, 1000], got %g", c.Simulation.Speed)
	}
	if c.Simulation.Jitter < 0 {
		return fmt.Errorf("jitter must be non-negative, got %g", c.Simulation.Jitter)
	}
	if c.Simulation.MaxAgents <= 0 {
		return fmt.Errorf("max_agents must be positive, got %d", c.Simulation.MaxAgents)
	}
	if c.Simulation.DefaultAgents < 0 || c.Simulation.DefaultAgents > c.Simulation.MaxAgents {
		return fmt.Errorf("default_agents must be between 0 and max_agents (%d), got %d",
			c.Simulation.MaxAgents, c.Simulation.DefaultAgents)
	}

	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote timeout must be non-negative, got %v", c.Remote.Timeout)
	}

	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"": true, "text": true, "json": true, "auto": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json, auto)", c.Logging.Format)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DAYSIM_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Server.Port = n
		}
	}

	if v := os.Getenv("DAYSIM_ADMIN_KEY"); v != "" {
		config.Server.AdminKey = v
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		config.Server.CORSOrigins = v
	}

	// Set but empty disables the remote source.
	if v, ok := os.LookupEnv("DAYSIM_REMOTE_URL"); ok {
		config.Remote.BaseURL = v
	}

	if v, ok := os.LookupEnv("DAYSIM_JOURNAL"); ok {
		config.Journal.Path = v
	}

	if v := os.Getenv("DAYSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("DAYSIM_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.Speed = f
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
