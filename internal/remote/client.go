// Package remote talks to the server-side persistence API. The
// coordinator treats it as a secondary store: loads fall back to it
// when no local mirror exists, and saves fan out to it after the
// local mirror is updated.
package remote

import (
	"context"
	"encoding/json"

	"github.com/kruplan/kruplan/internal/schedule"
)

// Client is the remote persistence port. Sheets are loaded raw so the
// caller can run migration before the data enters the store. LoadConfig
// returns nil without error when the owner has no stored config.
type Client interface {
	LoadSheets(ctx context.Context, owner string) ([]json.RawMessage, error)
	SaveSheets(ctx context.Context, owner string, sheets []schedule.Sheet) error
	LoadConfig(ctx context.Context, owner string) (*schedule.Config, error)
	SaveConfig(ctx context.Context, owner string, cfg schedule.Config) error
}
