package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron              *cron.Cron
	jobs              *Jobs
	logger            *slog.Logger
	retentionSchedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, retentionSchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:              c,
		jobs:              jobs,
		logger:            logger,
		retentionSchedule: retentionSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.retentionSchedule, s.jobs.PurgeStaleCheckouts); err != nil {
		s.logger.Error("failed to schedule checkout retention job", "schedule", s.retentionSchedule, "error", err)
		return err
	}
	s.logger.Info("scheduled checkout retention job", "schedule", s.retentionSchedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
