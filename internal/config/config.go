// Package config loads hostkit settings from an optional YAML file and
// HOSTKIT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/internal/logging"
	"github.com/aponysus/hostkit/policy"
	"github.com/aponysus/hostkit/storage"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "HOSTKIT_"

type Config struct {
	Environment string          `yaml:"environment" env:"ENVIRONMENT"`
	Log         LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Database    DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Migration   MigrationConfig `yaml:"migration" envPrefix:"MIGRATION_"`
	HTTP        HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"`
	DSN             string        `yaml:"dsn" env:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// MigrationConfig tunes the startup migration retry. Zero values keep the
// built-in schedule of four attempts with waits of 3s, 5s and 8s.
type MigrationConfig struct {
	MaxAttempts int             `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	Delays      []time.Duration `yaml:"delays" env:"DELAYS"`
	Timeout     time.Duration   `yaml:"timeout" env:"TIMEOUT"`
	// Seed enables demo data in the Development environment.
	Seed bool `yaml:"seed" env:"SEED"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Environment: string(host.Production),
		Log:         LogConfig{Level: "info", Format: string(logging.FormatText)},
		Database: DatabaseConfig{
			Driver: string(storage.DriverSQLite),
			DSN:    "data/hostkit.db",
		},
		Migration: MigrationConfig{Seed: true},
		HTTP:      HTTPConfig{Addr: ":8080", ShutdownTimeout: 5 * time.Second},
	}
}

// Load reads path (skipped when empty) over Default, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	if _, err := storage.ParseDriver(c.Database.Driver); err != nil {
		errs = append(errs, fmt.Errorf("database.driver: %w", err))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database: pool sizes must not be negative"))
	}
	if c.Migration.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("migration.max_attempts: must not be negative, got %d", c.Migration.MaxAttempts))
	}
	for i, d := range c.Migration.Delays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("migration.delays[%d]: must not be negative, got %s", i, d))
		}
	}
	if c.Migration.Timeout < 0 {
		errs = append(errs, errors.New("migration.timeout: must not be negative"))
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr: required"))
	}
	return errors.Join(errs...)
}

func (c Config) Env() host.Environment {
	return host.ParseEnvironment(c.Environment)
}

// Logger builds the process logger. Call after Validate.
func (c Config) Logger() *slog.Logger {
	level, _ := logging.ParseLevel(c.Log.Level)
	format, _ := logging.ParseFormat(c.Log.Format)
	return logging.New(level, format)
}

// Storage converts the database section. Call after Validate.
func (c Config) Storage() storage.Config {
	driver, _ := storage.ParseDriver(c.Database.Driver)
	return storage.Config{
		Driver:          driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// PolicyOptions translates the migration section into policy options.
func (m MigrationConfig) PolicyOptions() []policy.Option {
	var opts []policy.Option
	if len(m.Delays) > 0 {
		opts = append(opts, policy.Delays(m.Delays...))
	}
	if m.MaxAttempts > 0 {
		opts = append(opts, policy.MaxAttempts(m.MaxAttempts))
	}
	if m.Timeout > 0 {
		opts = append(opts, policy.OverallTimeout(m.Timeout))
	}
	return opts
}

// RetryPolicy is the migration policy for key, e.g. "dbinit.catalog".
func (c Config) RetryPolicy(key string) policy.EffectivePolicy {
	return policy.New(key, c.Migration.PolicyOptions()...)
}
