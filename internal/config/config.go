// Package config loads server configuration from file, environment, and
// defaults using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Reference  ReferenceConfig  `mapstructure:"reference"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig selects and configures the history store backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLitePath      string        `mapstructure:"sqlite_path"`
	PostgresURL     string        `mapstructure:"postgres_url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig selects and configures the evaluation cache backend.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"` // "memory", "redis", or "none"
	Size     int           `mapstructure:"size"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
}

// ReferenceConfig configures the reference-table store.
type ReferenceConfig struct {
	OverridePath string `mapstructure:"override_path"`
}

// AnalyticsConfig centralizes the pipeline policy constants so thresholds
// live in one configurable place instead of scattered per module.
type AnalyticsConfig struct {
	BorderlineBand          float64 `mapstructure:"borderline_band"`
	SevereDeviationRatio    float64 `mapstructure:"severe_deviation_ratio"`
	CriticalPercent         float64 `mapstructure:"critical_percent"`
	TrendSlopeThreshold     float64 `mapstructure:"trend_slope_threshold"`
	CorrelationSignificance float64 `mapstructure:"correlation_significance"`
}

// DictionaryConfig configures the optional remote biomarker dictionary
// fallback resolver.
type DictionaryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	CacheSize int           `mapstructure:"cache_size"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads and validates configuration using Viper.
type Manager struct {
	config *Config
}

// NewManager creates a configuration manager, loading from config.yaml (if
// present), environment variables with the BIOMARKER prefix, and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/biomarker-insight-server/")

	viper.SetEnvPrefix("BIOMARKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.sqlite_path", "./data/history.db")
	viper.SetDefault("database.postgres_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.size", 1024)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")

	viper.SetDefault("reference.override_path", "")

	viper.SetDefault("analytics.borderline_band", 0.10)
	viper.SetDefault("analytics.severe_deviation_ratio", 0.5)
	viper.SetDefault("analytics.critical_percent", 20.0)
	viper.SetDefault("analytics.trend_slope_threshold", 0.1)
	viper.SetDefault("analytics.correlation_significance", 0.5)

	viper.SetDefault("dictionary.enabled", false)
	viper.SetDefault("dictionary.base_url", "")
	viper.SetDefault("dictionary.timeout", "10s")
	viper.SetDefault("dictionary.rate_limit", 5.0)
	viper.SetDefault("dictionary.cache_size", 512)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate checks the configuration for contradictions before startup.
func (m *Manager) Validate() error {
	cfg := m.config

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires database.sqlite_path")
		}
	case "postgres":
		if cfg.Database.PostgresURL == "" {
			return fmt.Errorf("postgres driver requires database.postgres_url")
		}
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	switch cfg.Cache.Backend {
	case "memory", "none":
	case "redis":
		if cfg.Cache.RedisURL == "" {
			return fmt.Errorf("redis cache requires cache.redis_url")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}

	if cfg.Analytics.BorderlineBand < 0 || cfg.Analytics.BorderlineBand >= 0.5 {
		return fmt.Errorf("analytics.borderline_band must be in [0, 0.5): %f", cfg.Analytics.BorderlineBand)
	}
	if cfg.Analytics.CorrelationSignificance < 0 || cfg.Analytics.CorrelationSignificance > 1 {
		return fmt.Errorf("analytics.correlation_significance must be in [0, 1]: %f", cfg.Analytics.CorrelationSignificance)
	}

	if cfg.Dictionary.Enabled && cfg.Dictionary.BaseURL == "" {
		return fmt.Errorf("dictionary fallback enabled without dictionary.base_url")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}
