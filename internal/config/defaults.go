package config

import "time"

// Defaults returns the baseline configuration applied before the file
// and environment are consulted.
func Defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: StorageFile,
			Path:   "data",
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			QuietWindow:   3 * time.Second,
			FlushInterval: 30 * time.Second,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
		NATS: NATSConfig{
			Subject: "kruplan.saves",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// fillDefaults backfills zero values that an explicit (but partial)
// config file may have cleared.
func fillDefaults(cfg *Config) {
	base := Defaults()
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = base.Storage.Driver
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = base.Storage.Path
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = base.Remote.Timeout
	}
	if cfg.Sync.QuietWindow == 0 {
		cfg.Sync.QuietWindow = base.Sync.QuietWindow
	}
	if cfg.Sync.FlushInterval == 0 {
		cfg.Sync.FlushInterval = base.Sync.FlushInterval
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = base.Server.Listen
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = base.NATS.Subject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = base.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = base.Logging.Format
	}
}
