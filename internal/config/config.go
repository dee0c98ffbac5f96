// Package config provides configuration management for the paper feed service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the paper feed service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Source contains the CORE search API client settings.
	Source SourceConfig `mapstructure:"source"`
	// Pipeline contains fetch cycle settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Scheduler contains fetch cycle cadence settings.
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use an environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// SourceConfig holds CORE search API client configuration.
type SourceConfig struct {
	// APIKey is the CORE API key, sent as a bearer token.
	// Loaded exclusively from the PAPERFEED_SOURCE_API_KEY environment variable.
	APIKey string `mapstructure:"-"`
	// BaseURL is the CORE API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxRetries is the maximum retry attempts for 429/5xx responses.
	MaxRetries int `mapstructure:"max_retries"`
}

// PipelineConfig holds fetch cycle configuration.
type PipelineConfig struct {
	// LookbackDays bounds the publication window of fetched records; the
	// query restricts to papers published in or after the year of
	// (now - LookbackDays).
	LookbackDays int `mapstructure:"lookback_days"`
	// MinPageCount rejects records whose known page count is below this value.
	MinPageCount int `mapstructure:"min_page_count"`
	// MaxPages is the maximum number of result pages fetched per run.
	MaxPages int `mapstructure:"max_pages"`
	// PageSize is the number of records requested per page.
	PageSize int `mapstructure:"page_size"`
	// RunCap stops a run early once this many new records have been stored.
	RunCap int `mapstructure:"run_cap"`
	// PromotionLimit is the maximum documents promoted per domain per run.
	PromotionLimit int `mapstructure:"promotion_limit"`
	// RetentionEnabled enables the time-based retention sweep after each run.
	RetentionEnabled bool `mapstructure:"retention_enabled"`
	// RetentionMaxAge is the age past which documents are deleted when the
	// retention sweep is enabled.
	RetentionMaxAge time.Duration `mapstructure:"retention_max_age"`
}

// SchedulerConfig holds fetch cycle cadence configuration.
type SchedulerConfig struct {
	// CronSpec is the cron expression for the recurring fetch cycle (UTC).
	CronSpec string `mapstructure:"cron_spec"`
	// StartupRun triggers one fetch cycle shortly after process start.
	StartupRun bool `mapstructure:"startup_run"`
	// StartupDelay is how long after start the initial fetch cycle runs,
	// leaving the servers time to bind first.
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPERFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-feed-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets are tagged mapstructure:"-" and come exclusively from the
	// environment, never from config files.
	cfg.Source.APIKey = os.Getenv("PAPERFEED_SOURCE_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperfeed")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paper_feed_service")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Source defaults (API key comes from PAPERFEED_SOURCE_API_KEY)
	v.SetDefault("source.base_url", "https://api.core.ac.uk/v3")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.rate_limit", 2.0)
	v.SetDefault("source.max_retries", 3)

	// Pipeline defaults
	v.SetDefault("pipeline.lookback_days", 7)
	v.SetDefault("pipeline.min_page_count", 15)
	v.SetDefault("pipeline.max_pages", 3)
	v.SetDefault("pipeline.page_size", 100)
	v.SetDefault("pipeline.run_cap", 50)
	v.SetDefault("pipeline.promotion_limit", 10)
	v.SetDefault("pipeline.retention_enabled", false)
	v.SetDefault("pipeline.retention_max_age", "720h")

	// Scheduler defaults: daily at 18:30 UTC (midnight IST), plus one run
	// shortly after startup.
	v.SetDefault("scheduler.cron_spec", "30 18 * * *")
	v.SetDefault("scheduler.startup_run", true)
	v.SetDefault("scheduler.startup_delay", "5s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Source.BaseURL == "" {
		return fmt.Errorf("source base URL is required")
	}
	if c.Source.APIKey == "" {
		return fmt.Errorf("source API key is required; set PAPERFEED_SOURCE_API_KEY")
	}

	if c.Pipeline.LookbackDays <= 0 {
		return fmt.Errorf("pipeline lookback_days must be positive")
	}
	if c.Pipeline.MinPageCount < 0 {
		return fmt.Errorf("pipeline min_page_count must not be negative")
	}
	if c.Pipeline.MaxPages <= 0 {
		return fmt.Errorf("pipeline max_pages must be positive")
	}
	if c.Pipeline.PageSize <= 0 {
		return fmt.Errorf("pipeline page_size must be positive")
	}
	if c.Pipeline.RunCap <= 0 {
		return fmt.Errorf("pipeline run_cap must be positive")
	}
	if c.Pipeline.PromotionLimit <= 0 {
		return fmt.Errorf("pipeline promotion_limit must be positive")
	}
	if c.Pipeline.RetentionEnabled && c.Pipeline.RetentionMaxAge <= 0 {
		return fmt.Errorf("pipeline retention_max_age must be positive when retention is enabled")
	}

	if c.Scheduler.CronSpec == "" {
		return fmt.Errorf("scheduler cron_spec is required")
	}

	return nil
}
