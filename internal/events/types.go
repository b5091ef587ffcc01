package events

import "time"

// SheetsChanged is published by the schedule store after every completed
// mutation. The persistence coordinator treats it as "mirror locally now,
// remote save needed soon".
type SheetsChanged struct {
	Reason    string // mutator name, e.g. "update_slot"
	SheetID   string // sheet the mutation targeted; empty for fan-out updates
	ChangedAt time.Time
}

// SaveCompleted is published after a successful remote save.
type SaveCompleted struct {
	Owner      string
	SheetCount int
	Duration   time.Duration
	SavedAt    time.Time
}

// SaveFailed is published after a failed remote save attempt. The
// coordinator keeps retrying; this event is advisory.
type SaveFailed struct {
	Owner    string
	Error    string
	FailedAt time.Time
}

// StatusChanged is published whenever the coordinator's save status moves.
type StatusChanged struct {
	Status    string
	ChangedAt time.Time
}

// ConfigReloaded is published by the config watcher when the configuration
// file changed on disk and was re-read successfully.
type ConfigReloaded struct {
	Path       string
	ReloadedAt time.Time
}
