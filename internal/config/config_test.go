package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, StorageFile, cfg.Storage.Driver)
	require.Equal(t, 3*time.Second, cfg.Sync.QuietWindow)
	require.Equal(t, 30*time.Second, cfg.Sync.FlushInterval)
	require.Equal(t, ":8080", cfg.Server.Listen)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: sqlite
  path: /tmp/kruplan.db
remote:
  base_url: http://backend:9000
  owner: owner-1
sync:
  quiet_window: 5s
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, StorageSQLite, cfg.Storage.Driver)
	require.Equal(t, "/tmp/kruplan.db", cfg.Storage.Path)
	require.Equal(t, "http://backend:9000", cfg.Remote.BaseURL)
	require.Equal(t, "owner-1", cfg.Remote.Owner)
	require.Equal(t, 5*time.Second, cfg.Sync.QuietWindow)
	// Unset values still get defaults.
	require.Equal(t, 30*time.Second, cfg.Sync.FlushInterval)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  base_url: http://from-file\n"), 0o644))

	t.Setenv("KRUPLAN_REMOTE_BASE_URL", "http://from-env")
	t.Setenv("KRUPLAN_SYNC_QUIET_WINDOW", "250ms")
	t.Setenv("KRUPLAN_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://from-env", cfg.Remote.BaseURL)
	require.Equal(t, 250*time.Millisecond, cfg.Sync.QuietWindow)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Driver = "redis"
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRequiresNATSURLWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.NATS.Enabled = true
	require.Error(t, cfg.Validate())
	cfg.NATS.URL = "nats://localhost:4222"
	require.NoError(t, cfg.Validate())
}

func TestNormalizeLogLevel(t *testing.T) {
	require.Equal(t, LogLevelDebug, NormalizeLogLevel("DEBUG"))
	require.Equal(t, LogLevelWarn, NormalizeLogLevel("warning"))
	require.Equal(t, LogLevelInfo, NormalizeLogLevel("bogus"))
	require.Equal(t, slog.LevelError, NormalizeLogLevel("error").SlogLevel())
}

func TestNormalizeLogFormat(t *testing.T) {
	require.Equal(t, LogFormatJSON, NormalizeLogFormat(" JSON "))
	require.Equal(t, LogFormatText, NormalizeLogFormat("anything"))
}
