package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scheduler dispatch modes.
const (
	ModeImmediately = "immediately"
	ModeLastMinute  = "last-minute"
	ModeEnergyAware = "energy-aware"
)

// Config holds the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Prices    PricesConfig    `yaml:"prices"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory stores.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// EngineConfig holds the workflow execution engine endpoint.
type EngineConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SchedulerConfig holds settings for the workload scheduler.
type SchedulerConfig struct {
	// Mode selects the placement policy: immediately, last-minute or
	// energy-aware. When set it takes precedence over LastMinute.
	Mode string `yaml:"mode"`
	// LastMinute is the legacy toggle kept for existing deployments.
	LastMinute   bool          `yaml:"last_minute"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// ResolveMode returns the effective dispatch mode: the mode key when set,
// otherwise the legacy last_minute toggle mapped onto the new values.
func (c SchedulerConfig) ResolveMode() string {
	if c.Mode != "" {
		return c.Mode
	}
	if c.LastMinute {
		return ModeLastMinute
	}
	return ModeImmediately
}

// PricesConfig holds the energy price oracle endpoint.
type PricesConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SecurityConfig holds trust token settings. An empty signing key disables
// trust issuance (workloads are stored without a trust_id).
type SecurityConfig struct {
	SigningKey string `yaml:"signing_key"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: EngineConfig{
			URL:     "http://localhost:8989",
			Timeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval: time.Second,
		},
		Prices: PricesConfig{
			URL:     "http://localhost:9500/energy-price",
			Timeout: 3 * time.Second,
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Scheduler.TickInterval <= 0 {
		cfg.Scheduler.TickInterval = time.Second
	}
	if cfg.Prices.Timeout <= 0 {
		cfg.Prices.Timeout = 3 * time.Second
	}

	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}
