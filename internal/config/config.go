// ABOUTME: Configuration loading and parsing for charlie
// ABOUTME: Optional YAML file with ${ENV} expansion, overlaid by process environment values

package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete charlie configuration. The OAuth values
// and port come from the environment (clientId, clientSecret, PORT); the
// optional YAML file supplies the rest.
type Config struct {
	ClientID     string `yaml:"client_id" env:"clientId"`
	ClientSecret string `yaml:"client_secret" env:"clientSecret"`
	Port         int    `yaml:"port" env:"PORT"`
	RedirectURI  string `yaml:"redirect_uri" env:"REDIRECT_URI"`
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`

	Logging LoggingConfig `yaml:"logging"`

	// ReplyTimeout bounds how long a dialogue waits for each reply.
	// Zero means wait indefinitely, the baseline behavior.
	ReplyTimeout    time.Duration `yaml:"-" env:"-"`
	ReplyTimeoutRaw string        `yaml:"reply_timeout" env:"REPLY_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load builds the configuration: YAML file first (when path is non-empty
// and the file exists), environment overlay second, then defaults and
// validation. Environment variables in the YAML in the format ${VAR_NAME}
// are expanded.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			expanded := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.applyDefaults()

	if cfg.ReplyTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.ReplyTimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing reply_timeout: %w", err)
		}
		cfg.ReplyTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/charlie.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that the required values are present. A failure here is
// fatal at startup: the process exits before any bot is spawned.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("clientSecret is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	return nil
}

// SlogLevel maps the configured level string onto a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
