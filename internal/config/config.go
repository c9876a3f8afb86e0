// Package config loads and validates the YAML tunables for the IPC
// server: the well-known endpoint name prefix, outbound queue capacity,
// and the worker loop's tick and IO-slice timing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	Queue    QueueConfig    `yaml:"queue"`
	Timing   TimingConfig   `yaml:"timing"`
	Logging  LogConfig      `yaml:"logging"`
}

// Transport selects which Endpoint implementation the server binds.
type Transport string

const (
	TransportUnix      Transport = "unix"
	TransportWebSocket Transport = "websocket"
)

// EndpointConfig describes how clients locate and reach the server.
type EndpointConfig struct {
	Transport  Transport `yaml:"transport"`
	NamePrefix string    `yaml:"name_prefix"`
	// Address is used by the websocket transport (host:port to listen on);
	// the unix transport derives its path from NamePrefix and the process
	// ID instead.
	Address string `yaml:"address"`
}

// QueueConfig tunes the bounded outbound write queue.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// TimingConfig tunes the worker loop's cooperative scheduling.
type TimingConfig struct {
	Tick    Duration `yaml:"tick"`
	IOSlice Duration `yaml:"io_slice"`
}

// LogConfig mirrors the teacher's logging knobs, trimmed to what slog
// actually consumes.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a time.Duration that supports YAML string unmarshaling
// (e.g. "500ms", "5s") instead of YAML's native integer-nanoseconds form.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads config from a YAML file, applying defaults for any value the
// file leaves unset.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Endpoint.Transport {
	case TransportUnix:
		if c.Endpoint.NamePrefix == "" {
			return fmt.Errorf("endpoint.name_prefix is required for the unix transport")
		}
	case TransportWebSocket:
		if c.Endpoint.Address == "" {
			return fmt.Errorf("endpoint.address is required for the websocket transport")
		}
	default:
		return fmt.Errorf("endpoint.transport must be %q or %q, got %q", TransportUnix, TransportWebSocket, c.Endpoint.Transport)
	}

	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be >= 1, got %d", c.Queue.Capacity)
	}
	if c.Timing.Tick.Duration() <= 0 {
		return fmt.Errorf("timing.tick must be > 0")
	}
	if c.Timing.IOSlice.Duration() <= 0 {
		return fmt.Errorf("timing.io_slice must be > 0")
	}
	if c.Timing.IOSlice.Duration() >= c.Timing.Tick.Duration() {
		return fmt.Errorf("timing.io_slice (%s) must be shorter than timing.tick (%s)", c.Timing.IOSlice.Duration(), c.Timing.Tick.Duration())
	}
	return nil
}
