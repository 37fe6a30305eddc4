// Package scheduler runs the pipeline on a recurring cron expression.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"apogee/internal/logging"
)

// BatchFunc is one pipeline execution. Errors are logged, not fatal; the
// next scheduled run still happens.
type BatchFunc func(ctx context.Context) error

// Scheduler triggers a batch on a standard five-field cron expression.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	schedule string
	run      BatchFunc
}

// New validates the cron expression and prepares the scheduler.
func New(schedule string, run BatchFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, err
	}
	return &Scheduler{
		cron:     cron.New(),
		logger:   logger.With(logging.String(logging.FieldComponent, "scheduler")),
		schedule: schedule,
		run:      run,
	}, nil
}

// Run blocks until the context is canceled, firing the batch on schedule.
// Overlapping runs are prevented: a tick that arrives while a batch is
// still in flight is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	running := make(chan struct{}, 1)
	_, err := s.cron.AddFunc(s.schedule, func() {
		select {
		case running <- struct{}{}:
		default:
			s.logger.Warn("previous batch still running, skipping this tick")
			return
		}
		defer func() { <-running }()

		start := time.Now()
		s.logger.Info("scheduled batch starting")
		if err := s.run(ctx); err != nil {
			s.logger.Error("scheduled batch failed",
				logging.Error(err),
				logging.Duration("duration", time.Since(start)),
			)
			return
		}
		s.logger.Info("scheduled batch finished", logging.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return err
	}

	s.logger.Info("scheduler started", logging.String("schedule", s.schedule))
	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("timed out waiting for in-flight batch")
	}
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// NextRun reports when the schedule would next fire after now.
func NextRun(schedule string, now time.Time) (time.Time, error) {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return spec.Next(now), nil
}
