/*
Package config loads the engine's deployment configuration from YAML.

PURPOSE:
  One file configures the HTTP server, the SQLite database, the
  optional Postgres-backed device log, the reconciliation mode and the
  scheduler. Missing sections fall back to development defaults so a
  bare `attendd serve` works against a local database.

EXAMPLE:
  server:
    listen_addr: ":8080"
  database:
    path: "./data/attendance.db"
  event_source:
    driver: "sqlite"          # or "postgres"
    dsn: ""                   # pgx DSN when driver is postgres
  reconciliation:
    mode: "single"            # or "mandays"
    batch_limit: 500
    interval: "1m"
    scheduler_enabled: true
  week_off:
    default_days: [0]         # 0 = Sunday
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/digitali/attendance-engine/attendance"
)

// Config is the full deployment configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	EventSource    EventSourceConfig    `yaml:"event_source"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	WeekOff        WeekOffConfig        `yaml:"week_off"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig configures the SQLite database holding everything but
// (optionally) the raw device log.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EventSourceConfig selects where raw punches are read from. The
// "sqlite" driver reads the logs table of the main database; "postgres"
// reads a replicated device log over pgx.
type EventSourceConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// ReconciliationConfig tunes the engine and its scheduler.
type ReconciliationConfig struct {
	Mode             string `yaml:"mode"`
	BatchLimit       int    `yaml:"batch_limit"`
	IntervalRaw      string `yaml:"interval"`
	SchedulerEnabled *bool  `yaml:"scheduler_enabled"`

	Interval time.Duration `yaml:"-"`
}

// WeekOffConfig sets the deployment-wide default weekly off days, used
// for employees without a personal week-off. 0 = Sunday.
type WeekOffConfig struct {
	DefaultDays []int `yaml:"default_days"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}
	return Parse(b)
}

// Parse validates raw YAML configuration.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the development configuration used when no file is
// given.
func Default() *Config {
	cfg := &Config{}
	// Defaults are applied by the same normalization the file path uses.
	if err := cfg.validateAndNormalize(); err != nil {
		panic(err) // empty config always normalizes
	}
	return cfg
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/attendance.db"
	}

	switch c.EventSource.Driver {
	case "":
		c.EventSource.Driver = "sqlite"
	case "sqlite":
	case "postgres":
		if c.EventSource.DSN == "" {
			return fmt.Errorf("config: event_source.dsn must be set for the postgres driver")
		}
		if c.EventSource.Table == "" {
			c.EventSource.Table = "logs"
		}
	default:
		return fmt.Errorf("config: event_source.driver %q not supported", c.EventSource.Driver)
	}

	r := &c.Reconciliation
	switch r.Mode {
	case "":
		r.Mode = string(attendance.ModeSingle)
	case string(attendance.ModeSingle), string(attendance.ModeMandays):
	default:
		return fmt.Errorf("config: reconciliation.mode %q not supported", r.Mode)
	}
	if r.BatchLimit < 0 {
		return fmt.Errorf("config: reconciliation.batch_limit must not be negative")
	}
	if r.BatchLimit == 0 {
		r.BatchLimit = attendance.DefaultBatchLimit
	}

	if r.IntervalRaw == "" {
		r.Interval = time.Minute
	} else {
		d, err := time.ParseDuration(r.IntervalRaw)
		if err != nil {
			return fmt.Errorf("config: reconciliation.interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("config: reconciliation.interval must be positive")
		}
		r.Interval = d
	}

	for _, d := range c.WeekOff.DefaultDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("config: week_off.default_days entry %d out of range", d)
		}
	}
	return nil
}

// Mode returns the configured reconciliation mode.
func (c *Config) Mode() attendance.Mode {
	return attendance.Mode(c.Reconciliation.Mode)
}

// SchedulerEnabled reports whether the interval scheduler should run.
// Defaults to true.
func (c *Config) SchedulerEnabled() bool {
	if c.Reconciliation.SchedulerEnabled == nil {
		return true
	}
	return *c.Reconciliation.SchedulerEnabled
}

// DefaultWeekOffDays converts the configured day numbers to weekdays.
func (c *Config) DefaultWeekOffDays() []time.Weekday {
	out := make([]time.Weekday, 0, len(c.WeekOff.DefaultDays))
	for _, d := range c.WeekOff.DefaultDays {
		out = append(out, time.Weekday(d))
	}
	return out
}
