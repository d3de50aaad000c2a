/**
 * @description
 * Scheduled housekeeping for the subscription-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

// CheckoutPurger is the store capability needed by the retention job.
type CheckoutPurger interface {
	DeleteStaleCheckouts(ctx context.Context, cutoff time.Time) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo      CheckoutPurger
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo CheckoutPurger, retention time.Duration, logger *slog.Logger) *Jobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{
		repo:      repo,
		retention: retention,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PurgeStaleCheckouts deletes resolved checkouts, and abandoned ones past their TTL, once they
// are older than the retention window. It never resolves a live checkout.
func (j *Jobs) PurgeStaleCheckouts() {
	if j.retention <= 0 {
		return
	}

	j.logger.Info("starting checkout retention job")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.repo.DeleteStaleCheckouts(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to purge stale checkouts", "cutoff", cutoff, "error", err)
		return
	}

	j.logger.Info("checkout retention job finished", "deleted", deleted, "cutoff", cutoff)
}
