/*
config.go - Server configuration

PURPOSE:
  Loads the YAML configuration file of the server binary and applies the
  logging settings to logrus. Every key has a default, so the file is
  optional and may set only what it changes.

FILE FORMAT:
  server:
    port: 8080
  database:
    path: workorders.db
  calendar:
    timezone: America/Sao_Paulo
    cache_ttl: 30s
    seed_holidays: true
  monitor:
    enabled: true
    interval: 5m
  log:
    level: info
    format: text      # text | json

PRECEDENCE:
  defaults < config file < command-line flags (applied in cmd/server)

SEE ALSO:
  - cmd/server/main.go: flag overrides and wiring
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // embedded zoneinfo for calendar.timezone

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Calendar CalendarConfig `yaml:"calendar"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	// Path of the SQLite file. ":memory:" keeps everything in memory.
	Path string `yaml:"path"`
}

type CalendarConfig struct {
	// Timezone whose wall clock defines working hours and "today".
	Timezone string `yaml:"timezone"`
	// CacheTTL bounds how stale the cached working calendar may be.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// SeedHolidays stores the national holidays on first start.
	SeedHolidays bool `yaml:"seed_holidays"`
}

type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "workorders.db"},
		Calendar: CalendarConfig{
			Timezone:     "America/Sao_Paulo",
			CacheTTL:     30 * time.Second,
			SeedHolidays: true,
		},
		Monitor: MonitorConfig{Enabled: true, Interval: 5 * time.Minute},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and names that would otherwise fail at startup.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: calendar.timezone: %v", ErrInvalidConfig, err)
	}
	if c.Calendar.CacheTTL < 0 {
		return fmt.Errorf("%w: calendar.cache_ttl is negative", ErrInvalidConfig)
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("%w: monitor.interval must be positive", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// Location resolves calendar.timezone. Empty means the host's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Calendar.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Calendar.Timezone)
}

// =============================================================================
// LOGGING
// =============================================================================

// ConfigureLogger applies level and format to logger and tags every entry
// with the service name.
func ConfigureLogger(logger *logrus.Logger, c LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	logger.SetLevel(level)

	switch c.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.AddHook(serviceHook{})
	return nil
}

// ServiceName is added to every log entry as the "service" field.
const ServiceName = "workorder-engine"

type serviceHook struct{}

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (serviceHook) Fire(e *logrus.Entry) error {
	e.Data["service"] = ServiceName
	return nil
}
