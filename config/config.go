// Package config loads the process configuration from TOML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ecukit/localsip/endpoint"
)

// Config is the full application configuration.
type Config struct {
	Name     string         `toml:"name"`
	Log      LogConfig      `toml:"log"`
	Endpoint EndpointConfig `toml:"endpoint"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// EndpointConfig configures the local client endpoint.
type EndpointConfig struct {
	Local  string `toml:"local"`
	Remote string `toml:"remote"`

	MaxMessageSize uint32 `toml:"max_message_size"`
	QueueLimit     uint32 `toml:"queue_limit"`

	ConnectTimeoutMs    int64 `toml:"connect_timeout_ms"`
	ConnectingTimeoutMs int64 `toml:"connecting_timeout_ms"`
}

// Load reads, parses and validates the configuration at path.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "localsip"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Endpoint.MaxMessageSize == 0 {
		c.Endpoint.MaxMessageSize = 32768
	}
}

func (c *Config) validate() error {
	if c.Endpoint.Remote == "" {
		return fmt.Errorf("config: endpoint.remote is required")
	}
	if c.Endpoint.ConnectTimeoutMs < 0 || c.Endpoint.ConnectingTimeoutMs < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	return nil
}

// EndpointOptions converts the endpoint section into endpoint options.
// Host, routing host and logger are wired by the caller.
func (c *Config) EndpointOptions() endpoint.Options {
	return endpoint.Options{
		Local:             c.Endpoint.Local,
		Remote:            c.Endpoint.Remote,
		MaxMessageSize:    c.Endpoint.MaxMessageSize,
		QueueLimit:        c.Endpoint.QueueLimit,
		ConnectTimeout:    time.Duration(c.Endpoint.ConnectTimeoutMs) * time.Millisecond,
		ConnectingTimeout: time.Duration(c.Endpoint.ConnectingTimeoutMs) * time.Millisecond,
	}
}
