package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kruplan/kruplan/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve  ServeCmd  `cmd:"" help:"Run the schedule service (HTTP API, local mirror, remote sync)"`
	Export ExportCmd `cmd:"" help:"Export a timetable sheet from the local mirror"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
}

// logLevel is shared so the serve loop can re-apply the level when the
// config file changes.
var logLevel = new(slog.LevelVar)

// AfterApply runs after flag parsing; sets up logging once.
func (c *CLI) AfterApply() error {
	if c.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return nil
}

// ApplyLogging switches the default logger to the configured format and
// level. The verbose flag keeps debug level regardless of config.
func ApplyLogging(cfg config.LoggingConfig, verbose bool) {
	if !verbose {
		logLevel.Set(config.NormalizeLogLevel(cfg.Level).SlogLevel())
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if config.NormalizeLogFormat(cfg.Format) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
