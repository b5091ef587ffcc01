package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/kruplan/kruplan/internal/config"
	"github.com/kruplan/kruplan/internal/events"
	"github.com/kruplan/kruplan/internal/events/natspub"
	"github.com/kruplan/kruplan/internal/metrics"
	"github.com/kruplan/kruplan/internal/persist"
	"github.com/kruplan/kruplan/internal/remote"
	"github.com/kruplan/kruplan/internal/schedule"
	"github.com/kruplan/kruplan/internal/server"
	"github.com/kruplan/kruplan/internal/storage"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen string `short:"l" help:"Listen address (overrides config)"`
	Owner  string `help:"Owner id for remote persistence (overrides config)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ApplyLogging(cfg.Logging, root.Verbose)

	if s.Listen != "" {
		cfg.Server.Listen = s.Listen
	}
	if s.Owner != "" {
		cfg.Remote.Owner = s.Owner
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer local.Close()

	bus := events.NewBus()
	defer bus.Close()
	store := schedule.NewStore(bus)

	var remoteClient remote.Client
	if cfg.Remote.BaseURL != "" {
		remoteClient = remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, slog.Default())
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	coord, err := persist.NewCoordinator(store, local, remoteClient, bus, persist.Config{
		QuietWindow:   cfg.Sync.QuietWindow,
		FlushInterval: cfg.Sync.FlushInterval,
	}, persist.WithRecorder(recorder))
	if err != nil {
		return err
	}
	if cfg.Remote.Owner != "" {
		coord.SetOwner(cfg.Remote.Owner)
	}
	go func() {
		if err := coord.Run(ctx); err != nil {
			slog.Error("Coordinator stopped", "error", err)
		}
	}()
	<-coord.Ready()

	sched, err := persist.NewScheduler(coord, slog.Default())
	if err != nil {
		return err
	}
	if _, err := sched.SchedulePeriodicFlush(cfg.Sync.FlushInterval); err != nil {
		return err
	}
	sched.Start()
	defer func() { _ = sched.Stop() }()

	if cfg.NATS.Enabled {
		pub, conn, err := natspub.Connect(cfg.NATS.URL, cfg.NATS.Subject, bus, slog.Default())
		if err != nil {
			return err
		}
		defer conn.Close()
		go func() {
			if err := pub.Run(ctx); err != nil {
				slog.Error("Event publisher stopped", "error", err)
			}
		}()
	}

	watcher, err := config.NewWatcher(root.Config, bus, slog.Default())
	if err != nil {
		slog.Warn("Config watcher unavailable", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("Config watcher failed to start", "error", err)
		} else {
			defer func() { _ = watcher.Close() }()
			go reapplyLoggingOnReload(ctx, bus, root)
		}
	}

	srv, err := server.New(store, coord, server.Options{Registry: registry})
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Server.Listen) }()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// reapplyLoggingOnReload re-reads the config file whenever the watcher
// reports a change and applies the new log level and format.
func reapplyLoggingOnReload(ctx context.Context, bus *events.Bus, root *CLI) {
	reloaded, unsub := events.Subscribe[events.ConfigReloaded](bus, 4)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-reloaded:
			if !ok {
				return
			}
			cfg, err := config.Load(evt.Path)
			if err != nil {
				slog.Warn("Reloaded config is invalid, keeping current logging", "error", err)
				continue
			}
			ApplyLogging(cfg.Logging, root.Verbose)
			slog.Info("Logging configuration reloaded", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
		}
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		return storage.NewSQLiteStore(cfg.Path)
	default:
		return storage.NewFileStore(cfg.Path)
	}
}
