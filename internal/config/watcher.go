package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kruplan/kruplan/internal/events"
	"github.com/kruplan/kruplan/internal/fault"
)

// Watcher monitors the config file and publishes ConfigReloaded when
// it changes. Consumers reload what they can apply at runtime (the log
// level); everything else keeps its boot-time value.
type Watcher struct {
	configPath   string
	bus          *events.Bus
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
	debounceTime time.Duration
	reloadChan   chan struct{}
}

func NewWatcher(configPath string, bus *events.Bus, logger *slog.Logger) (*Watcher, error) {
	if bus == nil {
		return nil, fault.ValidationError("bus is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fault.ConfigError("resolving config path").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fault.InternalError("creating file watcher").WithCause(err).Build()
	}

	return &Watcher{
		configPath:   absPath,
		bus:          bus,
		watcher:      fsWatcher,
		logger:       logger.With("component", "config_watcher"),
		debounceTime: 500 * time.Millisecond,
		reloadChan:   make(chan struct{}, 1),
	}, nil
}

// Start begins watching. The watcher runs until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the directory; editors replace files on save, which drops
	// a watch registered on the file itself.
	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		return fault.ConfigError("watching config directory").
			WithCause(err).
			WithContext("dir", configDir).
			Build()
	}

	w.logger.Info("Starting configuration watcher", "config_path", w.configPath)
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(w.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.logger.Debug("Config file change detected", "file", event.Name, "op", event.Op.String())
				select {
				case w.reloadChan <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.reloadChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, func() {
				w.logger.Info("Configuration changed", "config_path", w.configPath)
				_ = w.bus.Publish(ctx, events.ConfigReloaded{
					Path:       w.configPath,
					ReloadedAt: time.Now(),
				})
			})
		}
	}
}
