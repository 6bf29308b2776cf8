package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/dgvi"
)

// DefaultRebuildSchedule runs the rebuild on the 2nd of each month at 03:30,
// after the previous month's satellite imagery has been ingested.
const DefaultRebuildSchedule = "30 3 2 * *"

// SchedulerConfig holds configuration for the rebuild scheduler.
type SchedulerConfig struct {
	// Rebuilder runs the per-month rebuild.
	Rebuilder *dgvi.Rebuilder

	// Logger for scheduler operations.
	Logger zerolog.Logger

	// Schedule is the cron expression (default: DefaultRebuildSchedule).
	Schedule string
}

// Scheduler triggers the monthly DGVI rebuild on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	rebuilder *dgvi.Rebuilder
	logger    zerolog.Logger
	schedule  string
}

// NewScheduler creates a new rebuild scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultRebuildSchedule
	}

	return &Scheduler{
		cron:      cron.New(),
		rebuilder: cfg.Rebuilder,
		logger:    cfg.Logger,
		schedule:  schedule,
	}
}

// Start registers the rebuild job and starts the cron loop. The scheduled
// rebuild targets the previous calendar month, whose data is complete.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		month := CurrentMonth(time.Now().AddDate(0, -1, 0))

		s.logger.Info().Str("month", month).Msg("scheduled dgvi rebuild starting")
		if _, err := s.rebuilder.Rebuild(ctx, month); err != nil {
			s.logger.Error().Err(err).Str("month", month).Msg("scheduled dgvi rebuild failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("rebuild scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
