// Package persist coordinates the in-memory schedule store with the
// local mirror and the remote persistence API. Every change is written
// to the local mirror synchronously; remote saves are debounced behind
// a quiescence window with a periodic fallback flush.
package persist

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kruplan/kruplan/internal/events"
	"github.com/kruplan/kruplan/internal/fault"
	"github.com/kruplan/kruplan/internal/metrics"
	"github.com/kruplan/kruplan/internal/remote"
	"github.com/kruplan/kruplan/internal/schedule"
	"github.com/kruplan/kruplan/internal/storage"
)

// SaveStatus tracks where the coordinator is in the save cycle.
type SaveStatus string

const (
	StatusSaved   SaveStatus = "saved"
	StatusSaving  SaveStatus = "saving"
	StatusUnsaved SaveStatus = "unsaved"
	StatusError   SaveStatus = "error"
)

type Config struct {
	// QuietWindow is how long the store must stay quiet before a
	// remote save fires.
	QuietWindow time.Duration
	// FlushInterval drives the periodic fallback flush.
	FlushInterval time.Duration
}

const (
	DefaultQuietWindow   = 3 * time.Second
	DefaultFlushInterval = 30 * time.Second
)

// Coordinator bridges the schedule store to the local mirror and the
// remote client. A single Run goroutine owns the debounce timer; all
// other methods only touch guarded state.
type Coordinator struct {
	store    *schedule.Store
	local    storage.Store
	remote   remote.Client
	bus      *events.Bus
	recorder metrics.Recorder
	logger   *slog.Logger
	cfg      Config

	mu         sync.Mutex
	owner      string
	status     SaveStatus
	loaded     bool
	lastConfig *schedule.Config

	ownerCh   chan string
	flushCh   chan struct{}
	readyOnce sync.Once
	ready     chan struct{}
}

func NewCoordinator(store *schedule.Store, local storage.Store, rc remote.Client, bus *events.Bus, cfg Config, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, fault.ValidationError("store is required").Build()
	}
	if local == nil {
		return nil, fault.ValidationError("local mirror is required").Build()
	}
	if bus == nil {
		return nil, fault.ValidationError("bus is required").Build()
	}
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = DefaultQuietWindow
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	c := &Coordinator{
		store:    store,
		local:    local,
		remote:   rc,
		bus:      bus,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default().With("component", "persist"),
		cfg:      cfg,
		status:   StatusSaved,
		ownerCh:  make(chan string, 1),
		flushCh:  make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l.With("component", "persist")
		}
	}
}

// Ready is closed once Run has loaded initial data and subscribed to
// store changes. Intended for tests and startup sequencing.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

func (c *Coordinator) Status() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

func (c *Coordinator) Owner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// SetOwner switches the active owner. The run loop cancels any pending
// debounce and reloads data for the new owner. Setting the same owner
// again is a no-op.
func (c *Coordinator) SetOwner(owner string) {
	c.mu.Lock()
	if owner == c.owner {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Keep only the latest requested owner.
	select {
	case <-c.ownerCh:
	default:
	}
	c.ownerCh <- owner
}

// Run drives the coordinator until ctx is canceled. It performs the
// initial load, mirrors every store change locally, and schedules
// remote saves behind the quiet window.
func (c *Coordinator) Run(ctx context.Context) error {
	if ctx == nil {
		return fault.ValidationError("context cannot be nil").Build()
	}

	changeCh, unsubscribe := events.Subscribe[events.SheetsChanged](c.bus, 64)
	defer unsubscribe()

	if err := c.load(ctx); err != nil {
		c.logger.Warn("Initial load failed, starting with defaults", "error", err)
	}

	c.readyOnce.Do(func() { close(c.ready) })

	quietTimer := time.NewTimer(time.Hour)
	if !quietTimer.Stop() {
		select {
		case <-quietTimer.C:
		default:
		}
	}
	var quietC <-chan time.Time

	resetTimer := func(after time.Duration) {
		if !quietTimer.Stop() {
			select {
			case <-quietTimer.C:
			default:
			}
		}
		quietTimer.Reset(after)
		quietC = quietTimer.C
	}
	stopTimer := func() {
		if !quietTimer.Stop() {
			select {
			case <-quietTimer.C:
			default:
			}
		}
		quietC = nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-changeCh:
			if !ok {
				return nil
			}
			c.mirror()
			if c.Owner() == "" {
				continue
			}
			c.setStatus(ctx, StatusUnsaved)
			resetTimer(c.cfg.QuietWindow)

		case <-quietC:
			quietC = nil
			c.flush(ctx)

		case <-c.flushCh:
			// The debounce may have flushed between the request and
			// now; only still-pending changes go out.
			if c.Status() != StatusUnsaved {
				continue
			}
			stopTimer()
			c.flush(ctx)

		case owner := <-c.ownerCh:
			stopTimer()
			c.mu.Lock()
			c.owner = owner
			c.loaded = false
			c.lastConfig = nil
			c.mu.Unlock()
			if err := c.load(ctx); err != nil {
				c.logger.Warn("Owner reload failed", "owner", owner, "error", err)
			}
		}
	}
}

// FlushIfUnsaved asks the run loop to push the current state to the
// remote when changes are still pending. Driven by the periodic
// scheduler job. The save itself happens on the run goroutine so it
// can never overlap a quiet-window flush.
func (c *Coordinator) FlushIfUnsaved() {
	c.mu.Lock()
	pending := c.status == StatusUnsaved && c.owner != ""
	c.mu.Unlock()
	if !pending {
		return
	}
	if len(c.store.Sheets()) == 0 {
		return
	}
	// A full channel means a request is already queued.
	select {
	case c.flushCh <- struct{}{}:
	default:
	}
}

// load resolves initial data for the current owner: local mirror
// first, then the remote, then a single default sheet. Data that did
// not come from the mirror is written to it right away, and a stored
// remote config is overlaid onto every sheet.
func (c *Coordinator) load(ctx context.Context) error {
	owner := c.Owner()

	var (
		sheets []schedule.Sheet
		source metrics.LoadSource
	)

	raw, found, err := c.local.Get(storage.MirrorKey)
	if err != nil {
		c.logger.Warn("Local mirror read failed", "error", err)
	}
	if found {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			c.logger.Warn("Local mirror is corrupt, ignoring", "error", err)
		} else {
			sheets = schedule.MigrateSheets(entries)
			source = metrics.LoadLocal
		}
	}

	if len(sheets) == 0 && owner != "" && c.remote != nil {
		entries, err := c.remote.LoadSheets(ctx, owner)
		if err != nil {
			c.logger.Warn("Remote load failed", "owner", owner, "error", err)
		} else if len(entries) > 0 {
			sheets = schedule.MigrateSheets(entries)
			source = metrics.LoadRemote
		}
	}

	if len(sheets) == 0 {
		sheets = []schedule.Sheet{schedule.DefaultSheet()}
		source = metrics.LoadDefault
	}

	if owner != "" && c.remote != nil {
		cfg, err := c.remote.LoadConfig(ctx, owner)
		if err != nil {
			c.logger.Warn("Remote config load failed", "owner", owner, "error", err)
		} else if cfg != nil {
			sheets = schedule.OverlayConfig(sheets, *cfg)
		}
	}

	c.store.Install(sheets, "")

	// Anything that did not come from the mirror is written to it right
	// away, so a freshly created default sheet keeps its id across a
	// restart.
	if source != metrics.LoadLocal {
		c.mirror()
	}

	snapshot := sheets[0].SchoolConfig()

	c.mu.Lock()
	c.loaded = true
	c.status = StatusSaved
	c.lastConfig = &snapshot
	c.mu.Unlock()

	c.recorder.IncLoadSource(source)
	c.recorder.SetSheetCount(len(sheets))
	c.logger.Info("Schedule data loaded", "source", string(source), "sheets", len(sheets), "owner", owner)
	c.publishStatus(ctx, StatusSaved)
	return nil
}

// mirror writes the full sheet list to the local store. Mirror
// failures are logged and counted but never interrupt the caller.
func (c *Coordinator) mirror() {
	data, err := json.Marshal(c.store.Sheets())
	if err != nil {
		c.logger.Error("Encoding sheets for mirror failed", "error", err)
		c.recorder.IncMirrorWrite(false)
		return
	}
	if err := c.local.Set(storage.MirrorKey, data); err != nil {
		c.logger.Warn("Local mirror write failed", "error", err)
		c.recorder.IncMirrorWrite(false)
		return
	}
	c.recorder.IncMirrorWrite(true)
}

// flush performs one full remote save. The config bundle is saved
// first when it differs from the last successfully saved snapshot;
// the snapshot only advances on success.
func (c *Coordinator) flush(ctx context.Context) {
	c.mu.Lock()
	owner := c.owner
	last := c.lastConfig
	c.mu.Unlock()

	if owner == "" || c.remote == nil {
		return
	}

	sheets := c.store.Sheets()
	if len(sheets) == 0 {
		return
	}

	c.setStatus(ctx, StatusSaving)
	start := time.Now()

	current := c.currentConfig(sheets)
	if last == nil || !schedule.ConfigEqual(*last, current) {
		if err := c.remote.SaveConfig(ctx, owner, current); err != nil {
			c.saveFailed(ctx, owner, err)
			return
		}
		c.mu.Lock()
		snapshot := current
		c.lastConfig = &snapshot
		c.mu.Unlock()
	}

	if err := c.remote.SaveSheets(ctx, owner, sheets); err != nil {
		c.saveFailed(ctx, owner, err)
		return
	}

	elapsed := time.Since(start)
	c.setStatus(ctx, StatusSaved)
	c.recorder.ObserveSaveDuration(elapsed)
	c.recorder.IncSaveOutcome(true)
	c.recorder.SetSheetCount(len(sheets))
	c.logger.Info("Remote save completed", "owner", owner, "sheets", len(sheets), "duration", elapsed)
	_ = c.bus.Publish(ctx, events.SaveCompleted{
		Owner:      owner,
		SheetCount: len(sheets),
		Duration:   elapsed,
		SavedAt:    time.Now(),
	})
}

func (c *Coordinator) currentConfig(sheets []schedule.Sheet) schedule.Config {
	activeID := c.store.ActiveSheetID()
	for i := range sheets {
		if sheets[i].ID == activeID {
			return sheets[i].SchoolConfig()
		}
	}
	return sheets[0].SchoolConfig()
}

func (c *Coordinator) saveFailed(ctx context.Context, owner string, err error) {
	c.setStatus(ctx, StatusError)
	c.recorder.IncSaveOutcome(false)
	c.logger.Warn("Remote save failed", "owner", owner, "error", err)
	_ = c.bus.Publish(ctx, events.SaveFailed{
		Owner:    owner,
		Error:    err.Error(),
		FailedAt: time.Now(),
	})
}

func (c *Coordinator) setStatus(ctx context.Context, status SaveStatus) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()
	c.publishStatus(ctx, status)
}

func (c *Coordinator) publishStatus(ctx context.Context, status SaveStatus) {
	_ = c.bus.Publish(ctx, events.StatusChanged{
		Status:    string(status),
		ChangedAt: time.Now(),
	})
}
