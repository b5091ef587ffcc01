package persist

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps gocron for the periodic save fallback. The quiet
// window handles the common case; this job catches changes that never
// see a quiet moment.
type Scheduler struct {
	scheduler gocron.Scheduler
	coord     *Coordinator
	logger    *slog.Logger
}

func NewScheduler(coord *Coordinator, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: s,
		coord:     coord,
		logger:    logger.With("component", "scheduler"),
	}, nil
}

// SchedulePeriodicFlush registers the fallback flush job. Returns the
// job ID for later management.
func (s *Scheduler) SchedulePeriodicFlush(interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.logger.Debug("Periodic flush check")
			s.coord.FlushIfUnsaved()
		}),
		gocron.WithName("periodic-flush"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic flush job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
