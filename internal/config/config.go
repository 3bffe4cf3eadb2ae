// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment overrides:
// NOTIFY_SERVER_PORT -> server.port.
const envPrefix = "NOTIFY_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	Migrate         bool          `koanf:"migrate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// NotificationsConfig holds the notification engine settings.
type NotificationsConfig struct {
	Enabled bool         `koanf:"enabled"`
	Email   EmailConfig  `koanf:"email"`
	Worker  WorkerConfig `koanf:"worker"`
	Retry   RetryConfig  `koanf:"retry"`
}

// EmailConfig holds SMTP settings for the email channel.
type EmailConfig struct {
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUser     string        `koanf:"smtp_user"`
	SMTPPassword string        `koanf:"smtp_password"`
	FromAddress  string        `koanf:"from_address"`
	SendTimeout  time.Duration `koanf:"send_timeout"`
	RateLimit    float64       `koanf:"rate_limit"`
}

// WorkerConfig holds queue worker settings.
type WorkerConfig struct {
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	NumWorkers   int           `koanf:"num_workers"`
}

// RetryConfig holds delivery retry settings.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Backoff     time.Duration `koanf:"backoff"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			Migrate:         true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Email: EmailConfig{
				SMTPPort:    587,
				SendTimeout: 30 * time.Second,
			},
			Worker: WorkerConfig{
				BatchSize:    100,
				PollInterval: 5 * time.Second,
				NumWorkers:   5,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				Backoff:     60 * time.Second,
			},
		},
	}
}

// Load reads configuration from the given YAML file (if it exists), then
// overlays NOTIFY_* environment variable overrides onto the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("access config %s: %w", path, err)
		}
	}

	// NOTIFY_DATABASE_URL -> database.url, etc.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Notifications.Retry.MaxAttempts < 1 {
		return fmt.Errorf("notifications.retry.max_attempts must be at least 1")
	}
	if c.Notifications.Worker.BatchSize < 1 {
		return fmt.Errorf("notifications.worker.batch_size must be at least 1")
	}
	return nil
}
