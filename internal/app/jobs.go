/**
 * @description
 * Scheduled maintenance jobs. Checkout correlations are short-lived lookup
 * rows; a daily cron purges those older than the configured retention window.
 */

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nanobanana/billing-service/internal/config"
	"github.com/nanobanana/billing-service/internal/store"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo   store.Repository
	logger *slog.Logger
	config config.Config
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo store.Repository, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		repo:   repo,
		logger: logger,
		config: cfg,
	}
}

// PurgeExpiredCheckoutMappings deletes correlation rows past the retention
// window.
func (j *Jobs) PurgeExpiredCheckoutMappings() {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -j.config.CheckoutMappingRetentionDays)

	purged, err := j.repo.PurgeCheckoutMappingsBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to purge checkout mappings", "error", err)
		return
	}
	if purged > 0 {
		j.logger.Info("purged expired checkout mappings", "count", purged, "cutoff", cutoff)
	}
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.CheckoutMappingGCSchedule, s.jobs.PurgeExpiredCheckoutMappings); err != nil {
		s.logger.Error("failed to schedule checkout mapping purge job", "error", err)
	} else {
		s.logger.Info("scheduled checkout mapping purge job", "schedule", s.config.CheckoutMappingGCSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
