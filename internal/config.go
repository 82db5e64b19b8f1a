package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/inconshreveable/log15"
	"gopkg.in/yaml.v3"

	"github.com/bbeck/locations/internal/location"
	"github.com/bbeck/locations/internal/protocol"
)

type Config struct {
	// Address to listen on when not running behind a tunnel.
	Address string `yaml:"address"`

	// Family restricts the listener to "v4" or "v6", empty allows both.
	Family string `yaml:"family"`

	// Tunnel exposes the server through ngrok instead of a local listener.
	Tunnel bool `yaml:"tunnel"`

	// Concurrent serves clients in parallel instead of one at a time.
	Concurrent     bool `yaml:"concurrent"`
	MaxConnections int  `yaml:"max_connections"`

	MaxMessageSize int           `yaml:"max_message_size"`
	MaxLocations   int           `yaml:"max_locations"`
	MaxCoordinate  int           `yaml:"max_coordinate"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MetricsAddress is where prometheus metrics are served, empty disables
	// them.
	MetricsAddress string `yaml:"metrics_address"`
}

func DefaultConfig() Config {
	return Config{
		Address:        "0.0.0.0:40000",
		MaxMessageSize: protocol.DefaultMaxMessageSize,
		MaxLocations:   location.DefaultCapacity,
		MaxCoordinate:  protocol.DefaultMaxCoordinate,
		LogLevel:       "info",
		LogFormat:      "auto",
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	bs, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	if !c.Tunnel && c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.Family != "" && c.Family != "v4" && c.Family != "v6" {
		errs = append(errs, fmt.Errorf("unknown family %q, expected v4 or v6", c.Family))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, errors.New("max_connections must not be negative"))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max_message_size must be positive"))
	}
	if c.MaxLocations <= 0 {
		errs = append(errs, errors.New("max_locations must be positive"))
	}
	if c.MaxCoordinate <= 0 {
		errs = append(errs, errors.New("max_coordinate must be positive"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("idle_timeout must not be negative"))
	}
	if _, err := log15.LvlFromString(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, ok := formats[c.LogFormat]; !ok {
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Network returns the network name to listen on for the configured family.
func (c Config) Network() string {
	switch c.Family {
	case "v4":
		return "tcp4"
	case "v6":
		return "tcp6"
	default:
		return "tcp"
	}
}
