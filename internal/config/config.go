// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	DBURL     string `mapstructure:"DB_URL" masq:"secret"`
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`

	AdminSecret string `mapstructure:"ADMIN_SECRET" masq:"secret"`

	GithubToken          string        `mapstructure:"GITHUB_TOKEN" masq:"secret"`
	GithubAPIURL         string        `mapstructure:"GITHUB_API_URL"`
	GithubRequestTimeout time.Duration `mapstructure:"GITHUB_REQUEST_TIMEOUT"`

	SyncTickInterval           time.Duration `mapstructure:"SYNC_TICK_INTERVAL"`
	SyncRunTimeout             time.Duration `mapstructure:"SYNC_RUN_TIMEOUT"`
	SyncLockKey                string        `mapstructure:"SYNC_LOCK_KEY"`
	SyncDefaultUsername        string        `mapstructure:"SYNC_DEFAULT_USERNAME"`
	SyncDefaultIncludeTopics   bool          `mapstructure:"SYNC_DEFAULT_INCLUDE_TOPICS"`
	SyncDefaultIntervalMinutes int           `mapstructure:"SYNC_DEFAULT_INTERVAL_MINUTES"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set default values. Every key needs one so that AutomaticEnv picks it up on Unmarshal.
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_URL", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("ADMIN_SECRET", "")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_API_URL", "")
	v.SetDefault("GITHUB_REQUEST_TIMEOUT", "10s")
	v.SetDefault("SYNC_TICK_INTERVAL", "60s")
	v.SetDefault("SYNC_RUN_TIMEOUT", "5m")
	v.SetDefault("SYNC_LOCK_KEY", "github-repo-sync")
	v.SetDefault("SYNC_DEFAULT_USERNAME", "")
	v.SetDefault("SYNC_DEFAULT_INCLUDE_TOPICS", false)
	v.SetDefault("SYNC_DEFAULT_INTERVAL_MINUTES", 60)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.SyncLockKey == "" {
		return errors.New("SYNC_LOCK_KEY must not be empty")
	}
	if c.SyncTickInterval < time.Second {
		return errors.New("SYNC_TICK_INTERVAL must be at least 1s")
	}
	if c.SyncRunTimeout <= 0 {
		return errors.New("SYNC_RUN_TIMEOUT must be positive")
	}
	if c.GithubRequestTimeout <= 0 {
		return errors.New("GITHUB_REQUEST_TIMEOUT must be positive")
	}
	if c.SyncDefaultIntervalMinutes < 1 {
		c.SyncDefaultIntervalMinutes = 1
	}
	return nil
}
