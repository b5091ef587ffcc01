package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kruplan/kruplan/internal/config"
	"github.com/kruplan/kruplan/internal/export"
	"github.com/kruplan/kruplan/internal/fault"
	"github.com/kruplan/kruplan/internal/schedule"
	"github.com/kruplan/kruplan/internal/storage"
)

// ExportCmd implements the 'export' command. It reads the local mirror
// directly; no server needs to be running.
type ExportCmd struct {
	Sheet  string `short:"s" help:"Sheet id or name (defaults to the first sheet)"`
	Format string `short:"f" help:"Output format: markdown or html" default:"markdown" enum:"markdown,md,html"`
	Output string `short:"o" help:"Output file (defaults to stdout)"`
}

func (e *ExportCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ApplyLogging(cfg.Logging, root.Verbose)

	local, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer local.Close()

	data, found, err := local.Get(storage.MirrorKey)
	if err != nil {
		return err
	}
	if !found {
		return fault.NotFoundError("no schedule data in the local mirror").Build()
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fault.StorageError("local mirror is corrupt").WithCause(err).Build()
	}
	sheets := schedule.MigrateSheets(entries)
	if len(sheets) == 0 {
		return fault.NotFoundError("local mirror holds no sheets").Build()
	}

	sheet, err := pickSheet(sheets, e.Sheet)
	if err != nil {
		return err
	}

	var out []byte
	switch e.Format {
	case "html":
		out, err = export.HTML(*sheet)
		if err != nil {
			return err
		}
	default:
		out = []byte(export.Markdown(*sheet))
	}

	if e.Output == "" {
		fmt.Print(string(out))
		return nil
	}
	if err := os.WriteFile(e.Output, out, 0o644); err != nil {
		return fault.StorageError("writing export file").
			WithCause(err).
			WithContext("path", e.Output).
			Build()
	}
	fmt.Printf("Exported %q to %s\n", sheet.Name, e.Output)
	return nil
}

func pickSheet(sheets []schedule.Sheet, selector string) (*schedule.Sheet, error) {
	if selector == "" {
		return &sheets[0], nil
	}
	for i := range sheets {
		if sheets[i].ID == selector || sheets[i].Name == selector {
			return &sheets[i], nil
		}
	}
	return nil, fault.NotFoundError("sheet not found").WithContext("selector", selector).Build()
}
