// Package config provides configuration management for the dashboard engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Backend Backend       `mapstructure:"backend"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
	UI      UIConfig      `mapstructure:"ui"`
}

// Backend holds endpoints for the dashboard backend.
type Backend struct {
	BaseURL   string        `mapstructure:"base_url"`
	StreamURL string        `mapstructure:"stream_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	AuthToken string        `mapstructure:"-"` // From env only, never persisted
}

// EngineConfig holds cadences and limits for the sync engine.
type EngineConfig struct {
	FetchInterval    time.Duration `mapstructure:"fetch_interval"`
	SimulateInterval time.Duration `mapstructure:"simulate_interval"`
	TapeInterval     time.Duration `mapstructure:"tape_interval"`
	DefaultLimit     int           `mapstructure:"default_limit"`
	PushInterval     int           `mapstructure:"push_interval"` // seconds, sent with subscribe
}

// CacheConfig holds the local view cache settings.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// UIConfig holds output-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	TimeFormat   string `mapstructure:"time_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stockdeck"
	}
	return filepath.Join(home, ".config", "stockdeck")
}

// DefaultCachePath returns the default location of the view cache database.
func DefaultCachePath() string {
	return filepath.Join(DefaultConfigDir(), "viewcache.db")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("engine.fetch_interval", "5s")
	v.SetDefault("engine.simulate_interval", "2500ms")
	v.SetDefault("engine.tape_interval", "30s")
	v.SetDefault("engine.default_limit", 50)
	v.SetDefault("engine.push_interval", 5)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.time_format", "15:04:05")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template and continue on defaults
			if werr := createTemplateConfig(configDir); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyDefaults(cfg *Config) {
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath()
	}
	if cfg.Backend.StreamURL == "" {
		cfg.Backend.StreamURL = deriveStreamURL(cfg.Backend.BaseURL)
	}
}

// deriveStreamURL maps the REST base URL to the websocket endpoint when no
// explicit stream URL is configured.
func deriveStreamURL(baseURL string) string {
	switch {
	case len(baseURL) > 8 && baseURL[:8] == "https://":
		return "wss://" + baseURL[8:] + "/ws/stocks"
	case len(baseURL) > 7 && baseURL[:7] == "http://":
		return "ws://" + baseURL[7:] + "/ws/stocks"
	default:
		return baseURL + "/ws/stocks"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKDECK_API_URL"); v != "" {
		cfg.Backend.BaseURL = v
		cfg.Backend.StreamURL = deriveStreamURL(v)
	}
	if v := os.Getenv("STOCKDECK_STREAM_URL"); v != "" {
		cfg.Backend.StreamURL = v
	}
	if v := os.Getenv("STOCKDECK_AUTH_TOKEN"); v != "" {
		cfg.Backend.AuthToken = v
	}
	if v := os.Getenv("STOCKDECK_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("STOCKDECK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STOCKDECK_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.DefaultLimit = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must be set")
	}
	if c.Engine.FetchInterval <= 0 {
		return fmt.Errorf("engine.fetch_interval must be positive")
	}
	if c.Engine.SimulateInterval <= 0 {
		return fmt.Errorf("engine.simulate_interval must be positive")
	}
	if c.Engine.SimulateInterval >= c.Engine.FetchInterval {
		return fmt.Errorf("engine.simulate_interval must be shorter than engine.fetch_interval")
	}
	if c.Engine.DefaultLimit < 0 {
		return fmt.Errorf("engine.default_limit must be non-negative")
	}
	return nil
}
