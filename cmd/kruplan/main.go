package main

import (
	"fmt"
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/kruplan/kruplan/cmd/kruplan/commands"
	"github.com/kruplan/kruplan/internal/version"
)

func main() {
	// .env is optional; process environment always wins.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment variables from .env")
	}

	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("kruplan"),
		kong.Description("School timetable schedule service with local and remote persistence."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("kruplan %s (commit %s, built %s)", version.Version, version.GitCommit, version.BuildTime)},
		kong.Bind(cli),
		kong.Bind(&commands.Global{Logger: slog.Default()}),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
