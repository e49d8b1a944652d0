// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Sleep timer scopes.
const (
	SleepTimerScopeGlobal  = "global"
	SleepTimerScopeSession = "session"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Control    ControlConfig           `yaml:"control"`
	Player     PlayerConfig            `yaml:"player"`
	Widget     WidgetConfig            `yaml:"widget"`
	SleepTimer SleepTimerConfig        `yaml:"sleep_timer"`
	Search     SearchConfig            `yaml:"search"`
	Filters    map[string]FilterConfig `yaml:"filters"`
	Storage    StorageConfig           `yaml:"storage"`
	User       UserConfig              `yaml:"user"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents control API access configuration.
// An empty token disables authentication.
type ControlConfig struct {
	Token string `yaml:"token"`
}

// PlayerConfig represents playback configuration.
type PlayerConfig struct {
	InitialVolume int `yaml:"initial_volume" default:"100" validate:"gte=0,lte=100"`
	InitTimeoutMs int `yaml:"init_timeout_ms" default:"10000" validate:"gte=100,lte=120000"`
}

// WidgetConfig represents the simulated widget configuration.
type WidgetConfig struct {
	ReadyDelayMs int      `yaml:"ready_delay_ms" default:"200" validate:"gte=0,lte=60000"`
	TickMs       int      `yaml:"tick_ms" default:"250" validate:"gte=10,lte=5000"`
	FailIDs      []string `yaml:"fail_ids"`
}

// SleepTimerConfig represents sleep timer configuration.
type SleepTimerConfig struct {
	ResolutionMs int    `yaml:"resolution_ms" default:"100" validate:"gte=10,lte=1000"`
	Scope        string `yaml:"scope" default:"global" validate:"oneof=global session"`
}

// SearchConfig represents catalog search configuration.
type SearchConfig struct {
	Limit     int              `yaml:"limit" default:"20" validate:"gte=1,lte=50"`
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single search provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=youtube spotify"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// StorageConfig represents persistence configuration.
type StorageConfig struct {
	Driver string `yaml:"driver" default:"memory" validate:"oneof=memory sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required_unless=Driver memory"`
}

// UserConfig represents the local user identity.
type UserConfig struct {
	DefaultID string `yaml:"default_id" default:"local" validate:"max=64"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses YAML configuration, then applies environment overrides,
// defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		c.setProviderSetting("youtube", "api_key", v)
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.setProviderSetting("spotify", "client_id", v)
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.setProviderSetting("spotify", "client_secret", v)
	}
	if v := os.Getenv("TUBEBOX_CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
	if v := os.Getenv("TUBEBOX_DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
}

// setProviderSetting sets key on every provider of the given type.
func (c *Config) setProviderSetting(providerType, key, value string) {
	for i := range c.Search.Providers {
		if c.Search.Providers[i].Type != providerType {
			continue
		}
		if c.Search.Providers[i].Settings == nil {
			c.Search.Providers[i].Settings = make(map[string]any)
		}
		c.Search.Providers[i].Settings[key] = value
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// InitTimeout returns the widget initialization timeout.
func (c *Config) InitTimeout() time.Duration {
	return time.Duration(c.Player.InitTimeoutMs) * time.Millisecond
}

// SleepTimerResolution returns the sleep timer tick interval.
func (c *Config) SleepTimerResolution() time.Duration {
	return time.Duration(c.SleepTimer.ResolutionMs) * time.Millisecond
}

// WidgetReadyDelay returns the simulated widget readiness delay.
func (c *Config) WidgetReadyDelay() time.Duration {
	return time.Duration(c.Widget.ReadyDelayMs) * time.Millisecond
}

// WidgetTick returns the simulated widget time update interval.
func (c *Config) WidgetTick() time.Duration {
	return time.Duration(c.Widget.TickMs) * time.Millisecond
}
