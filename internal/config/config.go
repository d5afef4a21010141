// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/caarlos0/env/v7"
)

// Store backends
const (
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
)

// Config is the environment of a countryfilter process.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// DBPath defaults to $XDG_DATA_HOME/countryfilter/countryfilter.db.
	DBPath string `env:"COUNTRYFILTER_DB_PATH"`
	Store  string `env:"COUNTRYFILTER_STORE" envDefault:"bolt"`

	Addr            string            `env:"COUNTRYFILTER_ADDR" envDefault:"127.0.0.1:18920"`
	Inbox           string            `env:"COUNTRYFILTER_INBOX"`
	MaxFragmentSize datasize.ByteSize `env:"COUNTRYFILTER_MAX_FRAGMENT_SIZE" envDefault:"1MB"`
	ReplyTimeout    time.Duration     `env:"COUNTRYFILTER_REPLY_TIMEOUT" envDefault:"5s"`
	ClassifierCache int               `env:"COUNTRYFILTER_CLASSIFIER_CACHE" envDefault:"4096"`
	MetricsInterval time.Duration     `env:"COUNTRYFILTER_METRICS_INTERVAL" envDefault:"15s"`
	SnapshotPath    string            `env:"COUNTRYFILTER_SNAPSHOT_PATH"`

	OTelEnabled  bool   `env:"OTEL_ENABLED"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load parses the environment and fills derived defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.DBPath == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env cannot check on its own.
func (c *Config) Validate() error {
	var errs []error
	if c.Store != StoreBolt && c.Store != StoreSQLite {
		errs = append(errs, fmt.Errorf("COUNTRYFILTER_STORE: unknown backend %q", c.Store))
	}
	if c.MaxFragmentSize == 0 {
		errs = append(errs, errors.New("COUNTRYFILTER_MAX_FRAGMENT_SIZE: must be positive"))
	}
	if c.ReplyTimeout <= 0 {
		errs = append(errs, errors.New("COUNTRYFILTER_REPLY_TIMEOUT: must be positive"))
	}
	if c.ClassifierCache < 0 {
		errs = append(errs, errors.New("COUNTRYFILTER_CLASSIFIER_CACHE: must not be negative"))
	}
	return errors.Join(errs...)
}

// BridgeURL is the websocket endpoint surfaces dial.
func (c *Config) BridgeURL() string {
	return "ws://" + c.Addr + "/ws"
}

// DefaultDBPath uses the XDG data directory, falling back to
// ~/.local/share so the binary works from read-only locations.
func DefaultDBPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "countryfilter", "countryfilter.db"), nil
}
