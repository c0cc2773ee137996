package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daysim.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	config := Default()

	if config.Server.Port != 8080 {
		t.Errorf("expected Port 8080, got %d", config.Server.Port)
	}
	if config.Simulation.TickInterval != time.Second {
		t.Errorf("expected TickInterval 1s, got %v", config.Simulation.TickInterval)
	}
	if config.Simulation.DefaultAgents != 10 || config.Simulation.MaxAgents != 50 {
		t.Errorf("expected agents 10/50, got %d/%d", config.Simulation.DefaultAgents, config.Simulation.MaxAgents)
	}
	if config.Remote.BaseURL != "https://bus.orville.wang" {
		t.Errorf("expected default remote, got '%s'", config.Remote.BaseURL)
	}
	if config.Logging.Level != "info" || config.Logging.Format != "auto" {
		t.Errorf("expected info/auto logging, got %s/%s", config.Logging.Level, config.Logging.Format)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  cors_origins: https://a.example,https://b.example
simulation:
  tick_interval: 250ms
  speed: 4
  seed: 7
  jitter: 0.002
remote:
  base_url: http://localhost:8787
  timeout: 3s
logging:
  level: debug
  format: json
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("expected Port 9090, got %d", config.Server.Port)
	}
	if config.Simulation.TickInterval != 250*time.Millisecond {
		t.Errorf("expected TickInterval 250ms, got %v", config.Simulation.TickInterval)
	}
	if config.Simulation.Speed != 4 || config.Simulation.Seed != 7 || config.Simulation.Jitter != 0.002 {
		t.Errorf("unexpected simulation config: %+v", config.Simulation)
	}
	if config.Remote.BaseURL != "http://localhost:8787" || config.Remote.Timeout != 3*time.Second {
		t.Errorf("unexpected remote config: %+v", config.Remote)
	}
	if config.Logging.Format != "json" {
		t.Errorf("expected json format, got %s", config.Logging.Format)
	}

	// Omitted fields keep defaults.
	if config.Simulation.MaxAgents != 50 {
		t.Errorf("expected MaxAgents default 50, got %d", config.Simulation.MaxAgents)
	}
	if config.Journal.Path != "data/daysim.db" {
		t.Errorf("expected default journal path, got '%s'", config.Journal.Path)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	path := writeConfig(t, "server:\n  admin_key: ${TEST_DAYSIM_KEY}\n")
	t.Setenv("TEST_DAYSIM_KEY", "expanded-key-value")

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Server.AdminKey != "expanded-key-value" {
		t.Errorf("expected expanded admin key, got '%s'", config.Server.AdminKey)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFromFile(writeConfig(t, "server: [not, a, map]")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("DAYSIM_PORT", "7070")
	t.Setenv("DAYSIM_ADMIN_KEY", "secret")
	t.Setenv("DAYSIM_REMOTE_URL", "")
	t.Setenv("DAYSIM_JOURNAL", "/tmp/j.db")
	t.Setenv("DAYSIM_LOG_LEVEL", "warn")
	t.Setenv("DAYSIM_SPEED", "2.5")
	t.Setenv("CORS_ORIGINS", "https://x.example")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Server.Port != 7070 {
		t.Errorf("expected env Port 7070, got %d", config.Server.Port)
	}
	if config.Server.AdminKey != "secret" {
		t.Errorf("expected env admin key, got '%s'", config.Server.AdminKey)
	}
	if config.Remote.BaseURL != "" {
		t.Errorf("empty DAYSIM_REMOTE_URL should disable remote, got '%s'", config.Remote.BaseURL)
	}
	if config.Journal.Path != "/tmp/j.db" {
		t.Errorf("expected env journal path, got '%s'", config.Journal.Path)
	}
	if config.Logging.Level != "warn" || config.Simulation.Speed != 2.5 {
		t.Errorf("expected warn/2.5, got %s/%g", config.Logging.Level, config.Simulation.Speed)
	}
	if config.Server.CORSOrigins != "https://x.example" {
		t.Errorf("expected env CORS origins, got '%s'", config.Server.CORSOrigins)
	}
}

func TestLoad_InvalidEnvNumbersIgnored(t *testing.T) {
	t.Setenv("DAYSIM_PORT", "eighty")
	t.Setenv("DAYSIM_SPEED", "fast")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Server.Port != 8080 || config.Simulation.Speed != 1 {
		t.Errorf("invalid env numbers should be ignored, got %d/%g", config.Server.Port, config.Simulation.Speed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"huge port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"zero interval", func(c *Config) { c.Simulation.TickInterval = 0 }, "tick_interval"},
		{"zero speed", func(c *Config) { c.Simulation.Speed = 0 }, "speed"},
		{"speed too high", func(c *Config) { c.Simulation.Speed = 5000 }, "speed"},
		{"negative jitter", func(c *Config) { c.Simulation.Jitter = -1 }, "jitter"},
		{"zero max agents", func(c *Config) { c.Simulation.MaxAgents = 0 }, "max_agents"},
		{"default above max", func(c *Config) { c.Simulation.DefaultAgents = 51 }, "default_agents"},
		{"negative timeout", func(c *Config) { c.Remote.Timeout = -time.Second }, "timeout"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"uppercase level", func(c *Config) { c.Logging.Level = "DEBUG" }, ""},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_StringRedactsKey(t *testing.T) {
	c := ServerConfig{Port: 8080, AdminKey: "abcd-super-secret-wxyz"}
	s := c.String()
	if strings.Contains(s, "super-secret") {
		t.Errorf("String() leaked the admin key: %s", s)
	}
	if !strings.Contains(s, "abcd...wxyz") {
		t.Errorf("String() = %s, want redacted key", s)
	}
	if got := (ServerConfig{AdminKey: "short"}).RedactedAdminKey(); got != "(set)" {
		t.Errorf("short key redaction = %q", got)
	}
}
