package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myfans/subscription-service/internal/domain"
	"github.com/myfans/subscription-service/internal/store"
)

type purgerStub struct {
	cutoff  time.Time
	calls   int
	deleted int64
	err     error
}

func (p *purgerStub) DeleteStaleCheckouts(ctx context.Context, cutoff time.Time) (int64, error) {
	p.calls++
	p.cutoff = cutoff
	return p.deleted, p.err
}

func newTestJobs(repo CheckoutPurger, retention time.Duration, now time.Time) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := NewJobs(repo, retention, logger)
	jobs.now = func() time.Time { return now }
	return jobs
}

func TestPurgeStaleCheckouts_UsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := &purgerStub{deleted: 3}

	newTestJobs(repo, 30*24*time.Hour, now).PurgeStaleCheckouts()

	require.Equal(t, 1, repo.calls)
	assert.Equal(t, now.Add(-30*24*time.Hour), repo.cutoff)
}

func TestPurgeStaleCheckouts_SkipsWhenRetentionDisabled(t *testing.T) {
	repo := &purgerStub{}

	newTestJobs(repo, 0, time.Now()).PurgeStaleCheckouts()

	assert.Equal(t, 0, repo.calls)
}

func TestPurgeStaleCheckouts_ToleratesStoreError(t *testing.T) {
	repo := &purgerStub{err: errors.New("db down")}

	newTestJobs(repo, time.Hour, time.Now()).PurgeStaleCheckouts()

	assert.Equal(t, 1, repo.calls)
}

func TestPurgeStaleCheckouts_KeepsLiveCheckouts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := store.NewMemoryRepository()

	live := &domain.Checkout{
		ID:        "live",
		Status:    domain.CheckoutStatusPending,
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
		UpdatedAt: now,
	}
	old := &domain.Checkout{
		ID:        "old",
		Status:    domain.CheckoutStatusFailed,
		ExpiresAt: now.Add(-40 * 24 * time.Hour),
		CreatedAt: now.Add(-40 * 24 * time.Hour),
		UpdatedAt: now.Add(-40 * 24 * time.Hour),
	}
	require.NoError(t, repo.CreateCheckout(ctx, live))
	require.NoError(t, repo.CreateCheckout(ctx, old))

	newTestJobs(repo, 30*24*time.Hour, now).PurgeStaleCheckouts()

	stillThere, err := repo.GetCheckoutByID(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusPending, stillThere.Status)

	_, err = repo.GetCheckoutByID(ctx, "old")
	require.ErrorIs(t, err, store.ErrCheckoutNotFound)
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler := NewScheduler(newTestJobs(&purgerStub{}, time.Hour, time.Now()), logger, "not a schedule")

	require.Error(t, scheduler.Start())
}

func TestScheduler_StartAndStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler := NewScheduler(newTestJobs(&purgerStub{}, time.Hour, time.Now()), logger, "@daily")

	require.NoError(t, scheduler.Start())
	<-scheduler.Stop().Done()
}
