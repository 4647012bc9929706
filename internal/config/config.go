// Package config provides configuration loading for solverd.
package config

import (
	"fmt"
	"time"

	"github.com/coderforge/solverd/internal/backend"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Backend  backend.Config `koanf:"backend"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PipelineConfig holds pipeline tunables.
type PipelineConfig struct {
	// WorkerLimit bounds concurrently running tasks.
	WorkerLimit int `koanf:"worker_limit"`

	// MaxIterations bounds the improvement collaboration loop.
	MaxIterations int `koanf:"max_iterations"`

	// FatalTransportFailures is the consecutive backend failure count
	// that fails a task as unreachable.
	FatalTransportFailures int `koanf:"fatal_transport_failures"`
}

// EventsConfig holds event bus settings. The bus is optional; without
// it, events are served to in-process subscribers only.
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	NATSURL string `koanf:"nats_url"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// applyDefaults fills in defaults for unset values.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = backend.ProviderGemini
	}
	if cfg.Pipeline.WorkerLimit == 0 {
		cfg.Pipeline.WorkerLimit = 8
	}
	if cfg.Pipeline.MaxIterations == 0 {
		cfg.Pipeline.MaxIterations = 3
	}
	if cfg.Pipeline.FatalTransportFailures == 0 {
		cfg.Pipeline.FatalTransportFailures = 3
	}
	if cfg.Events.NATSURL == "" {
		cfg.Events.NATSURL = "nats://localhost:4222"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Backend.Provider {
	case backend.ProviderGemini, backend.ProviderOpenAI:
	default:
		return fmt.Errorf("unknown backend provider %q", c.Backend.Provider)
	}
	if c.Pipeline.WorkerLimit < 1 {
		return fmt.Errorf("pipeline worker_limit must be positive, got %d", c.Pipeline.WorkerLimit)
	}
	if c.Pipeline.MaxIterations < 1 {
		return fmt.Errorf("pipeline max_iterations must be positive, got %d", c.Pipeline.MaxIterations)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}
