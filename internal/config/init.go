package config

import (
	"os"

	"github.com/kruplan/kruplan/internal/fault"
)

const configTemplate = `# kruplan configuration

storage:
  # Local mirror backend: file or sqlite.
  driver: file
  # Data directory for the file driver, database file for sqlite.
  path: data

remote:
  # Base URL of the persistence backend. Leave empty for local-only use.
  base_url: ""
  timeout: 10s
  # Default owner id. Can also be set per request via the API.
  owner: ""

sync:
  quiet_window: 3s
  flush_interval: 30s

server:
  listen: ":8080"

nats:
  enabled: false
  url: ""
  subject: kruplan.saves

logging:
  level: info
  format: text
`

// Init writes a starter configuration file. Existing files are only
// overwritten when force is set.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fault.ConfigError("config file already exists (use --force to overwrite)").
				WithContext("path", path).
				Build()
		}
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return fault.ConfigError("writing config file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
