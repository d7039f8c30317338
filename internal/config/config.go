// Package config loads fliess settings from a config file, FLIESS_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. FLIESS_RUN_INTERVAL.
const EnvPrefix = "FLIESS"

// DefaultConfigName is looked up in the working directory when no config
// file is given.
const DefaultConfigName = "fliess"

// Source kinds.
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Config is the complete runtime configuration.
type Config struct {
	DB       string         `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Run      RunConfig      `mapstructure:"run"`
	Source   SourceConfig   `mapstructure:"source"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunConfig controls a simulation run.
type RunConfig struct {
	// Interval between steps. Zero steps as fast as possible.
	Interval time.Duration `mapstructure:"interval"`

	// MaxDays bounds the run. Zero means until idle, within the engine's
	// default step budget.
	MaxDays int `mapstructure:"max_days"`

	StartDay int `mapstructure:"start_day"`
}

type SourceConfig struct {
	Kind string `mapstructure:"kind"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AMQPConfig enables step publishing when URL is set.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":            "db",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"interval":      "run.interval",
	"days":          "run.max_days",
	"start-day":     "run.start_day",
	"source":        "source.kind",
	"postgres-dsn":  "postgres.dsn",
	"amqp-url":      "amqp.url",
	"amqp-exchange": "amqp.exchange",
	"metrics-addr":  "metrics.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", "fliess.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("run.interval", time.Duration(0))
	v.SetDefault("run.max_days", 0)
	v.SetDefault("run.start_day", 0)
	v.SetDefault("source.kind", SourceSQLite)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "fliess.steps")
	v.SetDefault("metrics.addr", "")
}

// Load reads the configuration. path names an explicit config file; when
// empty, fliess.{yaml,yml,json,toml} in the working directory is used if
// present. Flags in fs that map to config keys override every other source
// when set on the command line. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	var errs []error
	if c.Run.Interval < 0 {
		errs = append(errs, fmt.Errorf("run.interval must not be negative, got %s", c.Run.Interval))
	}
	if c.Run.MaxDays < 0 {
		errs = append(errs, fmt.Errorf("run.max_days must not be negative, got %d", c.Run.MaxDays))
	}
	switch c.Source.Kind {
	case SourceSQLite:
		if c.DB == "" {
			errs = append(errs, errors.New("db is required for the sqlite source"))
		}
	case SourcePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres source"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind must be %q or %q, got %q", SourceSQLite, SourcePostgres, c.Source.Kind))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
