package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Memory.Capacity)
	assert.Equal(t, 30*time.Minute, cfg.Memory.DefaultTTL)
	assert.Empty(t, cfg.Memory.RedisAddr, "redis is opt-in")
	assert.Equal(t, "coordinator", cfg.Execution.CoordinatorID)
	assert.Equal(t, 2*time.Minute, cfg.Execution.InactivityTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
memory:
  capacity: 50
  redis_addr: "localhost:6379"
execution:
  coordinator_id: dispatch
  inactivity_timeout: 45s
logging:
  level: debug
  format: json
workers:
  - id: aria
    template: "You are {worker}."
    allowed_tools: [search]
  - id: zara
    template: "You are {worker}."
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Memory.Capacity)
	assert.Equal(t, "localhost:6379", cfg.Memory.RedisAddr)
	assert.Equal(t, "dispatch", cfg.Execution.CoordinatorID)
	assert.Equal(t, 45*time.Second, cfg.Execution.InactivityTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.Len(t, cfg.Workers, 2)
	assert.Equal(t, "aria", cfg.Workers[0].ID)
	assert.Equal(t, []string{"search"}, cfg.Workers[0].AllowedTools)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("TASKMESH_SERVER_PORT", "7777")
	t.Setenv("TASKMESH_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid logging format"},
		{"empty worker id", func(c *Config) { c.Workers = []WorkerConfig{{}} }, "empty id"},
		{"duplicate worker", func(c *Config) {
			c.Workers = []WorkerConfig{{ID: "aria"}, {ID: "aria"}}
		}, "duplicate worker id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
