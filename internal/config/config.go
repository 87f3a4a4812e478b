package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	once     sync.Once
	instance *Config
)

// ComponentConfig is where a service listens. Debug forces debug logging
// for that service regardless of log_level.
type ComponentConfig struct {
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Debug    bool   `yaml:"debug"`
}

// IdentityManagerConfig describes the local token validation service.
type IdentityManagerConfig struct {
	ComponentConfig `yaml:",inline"`
	Whitelist       string `yaml:"whitelist"`
}

// WidgetHostConfig describes the development host page.
type WidgetHostConfig struct {
	ComponentConfig `yaml:",inline"`
	// TokenEnv names the environment variable holding the access token
	// handed to the widget. An empty variable means "signed out".
	TokenEnv string   `yaml:"token_env"`
	Origins  []string `yaml:"origins"`
}

// MetricsConfig is the prometheus listener of services that have no HTTP
// server of their own.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// Config is the root of stocksearch.yaml.
type Config struct {
	Action          ComponentConfig       `yaml:"action"`
	IdentityManager IdentityManagerConfig `yaml:"identity_manager"`
	WidgetHost      WidgetHostConfig      `yaml:"widget_host"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	LogLevel        string                `yaml:"log_level"`
}

// Get loads the configuration once per process. A broken file is fatal.
func Get() *Config {
	once.Do(func() {
		path := os.Getenv("STOCKSEARCH_CONFIG")
		if path == "" {
			path = "stocksearch.yaml"
		}

		cfg, err := Load(path)
		if err != nil {
			log.Fatalf("[CONFIG ERROR] %v", err)
		}
		instance = cfg
	})
	return instance
}

// Load reads and validates a config file without touching the singleton.
func Load(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(f, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Action.Protocol == "" {
		c.Action.Protocol = "http"
	}
	if c.WidgetHost.Protocol == "" {
		c.WidgetHost.Protocol = "http"
	}
	if c.WidgetHost.TokenEnv == "" {
		c.WidgetHost.TokenEnv = "IMS_ACCESS_TOKEN"
	}
	if c.IdentityManager.Whitelist == "" {
		c.IdentityManager.Whitelist = "whitelist.yaml"
	}
}

// Address is host:port, the form gRPC dials and listens on.
func (c ComponentConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ComponentConfig) FullURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}

// LevelFor is the log level for the service described by c.
func (c *Config) LevelFor(component ComponentConfig) string {
	if component.Debug {
		return "debug"
	}
	return c.LogLevel
}

// MetricsAddress is the listen address of the standalone metrics endpoint,
// or "" when metrics.port is not set.
func (c *Config) MetricsAddress() string {
	if c.Metrics.Port == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", c.Metrics.Port)
}

// ChannelURL is the websocket address of the host page channel.
func (c WidgetHostConfig) ChannelURL() string {
	scheme := "ws"
	if c.Protocol == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/channel", scheme, c.Host, c.Port)
}
