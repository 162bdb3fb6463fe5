// Package config loads alphagenome settings from defaults, a YAML config
// file and ALPHAGENOME_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deluair/alphagenome/internal/analyzer"
	"github.com/deluair/alphagenome/internal/backend"
)

// EnvPrefix prefixes environment overrides, e.g. ALPHAGENOME_API_KEY or
// ALPHAGENOME_CACHE_ENABLED.
const EnvPrefix = "ALPHAGENOME"

// FileName is the config file name looked up in the home directory.
const FileName = ".alphagenome.yaml"

// Config holds every setting.
type Config struct {
	APIKey       string        `mapstructure:"api_key"`
	Backend      BackendConfig `mapstructure:"backend"`
	RateLimit    int           `mapstructure:"rate_limit"`
	IntervalSize int64         `mapstructure:"interval_size"`
	Cache        CacheConfig   `mapstructure:"cache"`
	Workers      int           `mapstructure:"workers"`
	Log          LogConfig     `mapstructure:"log"`
}

// BackendConfig configures the prediction service client.
type BackendConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	File         string `mapstructure:"file"` // snapshot loaded on start and saved on exit
	ContextKeyed bool   `mapstructure:"context_keyed"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("backend.url", backend.DefaultBaseURL)
	v.SetDefault("backend.timeout", 5*time.Minute)
	v.SetDefault("backend.max_retries", 0)
	v.SetDefault("rate_limit", analyzer.DefaultRateLimit)
	v.SetDefault("interval_size", analyzer.DefaultIntervalSize)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.file", "")
	v.SetDefault("cache.context_keyed", false)
	v.SetDefault("workers", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// DefaultPath returns ~/.alphagenome.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, FileName), nil
}

// Init sets defaults and environment binding on v and reads the config
// file. An explicit cfgFile must exist; the default file is optional.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the analyzer cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.IntervalSize <= 0:
		return fmt.Errorf("interval_size must be positive, got %d", c.IntervalSize)
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.RateLimit < 0:
		return fmt.Errorf("rate_limit must not be negative, got %d", c.RateLimit)
	case c.Backend.MaxRetries < 0:
		return fmt.Errorf("backend.max_retries must not be negative, got %d", c.Backend.MaxRetries)
	case c.Backend.Timeout < 0:
		return fmt.Errorf("backend.timeout must not be negative, got %s", c.Backend.Timeout)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// AnalyzerConfig returns the analyzer settings.
func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		RateLimit:           c.RateLimit,
		DefaultIntervalSize: c.IntervalSize,
		CacheEnabled:        c.Cache.Enabled,
		ContextKeyedCache:   c.Cache.ContextKeyed,
	}
}

// NewClient returns an HTTP backend client for the configured service.
func (c *Config) NewClient(logger *zap.Logger) *backend.HTTPClient {
	client := backend.NewHTTPClient(c.Backend.URL, c.APIKey, c.Backend.Timeout)
	client.SetMaxRetries(c.Backend.MaxRetries)
	client.SetLogger(logger)
	return client
}

// NewLogger builds a development (console) or production (json) logger
// writing to stderr at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = level
	return zc.Build()
}
