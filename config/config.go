// Package config provides configuration loading for taskmeshd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TASKMESH_SERVER_PORT, TASKMESH_MEMORY_CAPACITY, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TASKMESH_"

// Config holds the complete taskmeshd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Memory    MemoryConfig    `koanf:"memory"`
	Execution ExecutionConfig `koanf:"execution"`
	Logging   LoggingConfig   `koanf:"logging"`
	Workers   []WorkerConfig  `koanf:"workers"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MemoryConfig holds the memory service configuration. An empty RedisAddr
// disables the durable tier.
type MemoryConfig struct {
	Capacity    int           `koanf:"capacity"`
	DefaultTTL  time.Duration `koanf:"default_ttl"`
	RedisAddr   string        `koanf:"redis_addr"`
	RedisPrefix string        `koanf:"redis_prefix"`
}

// ExecutionConfig holds executor and engine settings.
type ExecutionConfig struct {
	CoordinatorID     string        `koanf:"coordinator_id"`
	InactivityTimeout time.Duration `koanf:"inactivity_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// WorkerConfig declares one worker personality.
type WorkerConfig struct {
	ID           string   `koanf:"id"`
	Template     string   `koanf:"template"`
	AllowedTools []string `koanf:"allowed_tools"`
	Capabilities []string `koanf:"capabilities"`
	Provider     string   `koanf:"provider"`
	Model        string   `koanf:"model"`
}

// Load loads configuration from the YAML file at path (skipped when empty or
// absent), then overrides with TASKMESH_* environment variables.
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing and splitting on the first underscore:
//
//	TASKMESH_SERVER_PORT          -> server.port
//	TASKMESH_MEMORY_REDIS_ADDR    -> memory.redis_addr
//	TASKMESH_LOGGING_LEVEL        -> logging.level
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format %q (want json or text)", c.Logging.Format)
	}
	seen := make(map[string]bool, len(c.Workers))
	for _, w := range c.Workers {
		if w.ID == "" {
			return fmt.Errorf("worker with empty id")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate worker id %q", w.ID)
		}
		seen[w.ID] = true
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Memory.Capacity == 0 {
		cfg.Memory.Capacity = 1000
	}
	if cfg.Memory.DefaultTTL == 0 {
		cfg.Memory.DefaultTTL = 30 * time.Minute
	}
	if cfg.Memory.RedisPrefix == "" {
		cfg.Memory.RedisPrefix = "taskmesh"
	}

	if cfg.Execution.CoordinatorID == "" {
		cfg.Execution.CoordinatorID = "coordinator"
	}
	if cfg.Execution.InactivityTimeout == 0 {
		cfg.Execution.InactivityTimeout = 2 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
