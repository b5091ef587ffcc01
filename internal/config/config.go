// Package config loads the application configuration from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kruplan/kruplan/internal/fault"
)

// StorageDriver selects the local mirror backend.
type StorageDriver string

const (
	StorageFile   StorageDriver = "file"
	StorageSQLite StorageDriver = "sqlite"
)

type StorageConfig struct {
	Driver StorageDriver `yaml:"driver"`
	// Path is the data directory for the file driver or the database
	// file for the sqlite driver.
	Path string `yaml:"path"`
}

type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// Owner is the default owner id. May also arrive via flag or API.
	Owner string `yaml:"owner"`
}

type SyncConfig struct {
	QuietWindow   time.Duration `yaml:"quiet_window"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Remote  RemoteConfig  `yaml:"remote"`
	Sync    SyncConfig    `yaml:"sync"`
	Server  ServerConfig  `yaml:"server"`
	NATS    NATSConfig    `yaml:"nats"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load reads the config file, fills defaults and applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fault.ConfigError("reading config file").
				WithCause(err).
				WithContext("path", path).
				Build()
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fault.ConfigError("parsing config file").
					WithCause(err).
					WithContext("path", path).
					Build()
			}
		}
	}

	applyEnvOverrides(cfg)
	fillDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the system cannot work with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageFile, StorageSQLite:
	default:
		return fault.ConfigError("unknown storage driver").
			WithContext("driver", string(c.Storage.Driver)).
			Build()
	}
	if c.Sync.QuietWindow < 0 || c.Sync.FlushInterval < 0 {
		return fault.ConfigError("sync intervals must not be negative").Build()
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fault.ConfigError("nats.url is required when nats is enabled").Build()
	}
	return nil
}

// applyEnvOverrides maps KRUPLAN_* environment variables onto the
// loaded config. Unset variables leave the file values untouched.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	if v := os.Getenv("KRUPLAN_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = StorageDriver(v)
	}
	setString("KRUPLAN_STORAGE_PATH", &cfg.Storage.Path)
	setString("KRUPLAN_REMOTE_BASE_URL", &cfg.Remote.BaseURL)
	setDuration("KRUPLAN_REMOTE_TIMEOUT", &cfg.Remote.Timeout)
	setString("KRUPLAN_OWNER", &cfg.Remote.Owner)
	setDuration("KRUPLAN_SYNC_QUIET_WINDOW", &cfg.Sync.QuietWindow)
	setDuration("KRUPLAN_SYNC_FLUSH_INTERVAL", &cfg.Sync.FlushInterval)
	setString("KRUPLAN_LISTEN", &cfg.Server.Listen)
	if v := os.Getenv("KRUPLAN_NATS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NATS.Enabled = b
		}
	}
	setString("KRUPLAN_NATS_URL", &cfg.NATS.URL)
	setString("KRUPLAN_NATS_SUBJECT", &cfg.NATS.Subject)
	setString("KRUPLAN_LOG_LEVEL", &cfg.Logging.Level)
	setString("KRUPLAN_LOG_FORMAT", &cfg.Logging.Format)
}
