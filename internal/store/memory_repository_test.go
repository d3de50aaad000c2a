package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myfans/subscription-service/internal/domain"
)

func newPendingCheckout(id string, now time.Time) *domain.Checkout {
	return &domain.Checkout{
		ID:             id,
		FanAddress:     "GFAN",
		CreatorAddress: "GCREATOR",
		PlanID:         "1",
		AssetCode:      "XLM",
		Amount:         domain.MustParseAmount("10"),
		Fee:            domain.MustParseAmount("0.5"),
		Total:          domain.MustParseAmount("10.5"),
		Status:         domain.CheckoutStatusPending,
		ExpiresAt:      now.Add(15 * time.Minute),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryRepository_CompleteCheckoutOnlyOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateCheckout(ctx, newPendingCheckout("c1", now)))

	params := CompleteCheckoutParams{
		CheckoutID: "c1",
		TxHash:     "abc123",
		ResolvedAt: now.Add(time.Minute),
		Subscription: domain.Subscription{
			ID:             "s1",
			FanAddress:     "GFAN",
			CreatorAddress: "GCREATOR",
			PlanID:         "1",
			Expiry:         now.Unix() + 30*86400,
		},
	}

	checkout, sub, err := repo.CompleteCheckout(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, checkout.Status)
	require.NotNil(t, checkout.TxHash)
	assert.Equal(t, "abc123", *checkout.TxHash)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)

	_, _, err = repo.CompleteCheckout(ctx, params)
	require.ErrorIs(t, err, ErrCheckoutNotPending)

	_, err = repo.FailCheckout(ctx, FailCheckoutParams{CheckoutID: "c1", Status: domain.CheckoutStatusFailed, Error: "x", ResolvedAt: now})
	require.ErrorIs(t, err, ErrCheckoutNotPending)
}

func TestMemoryRepository_ConcurrentResolutionHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateCheckout(ctx, newPendingCheckout("c1", now)))

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _, err := repo.CompleteCheckout(ctx, CompleteCheckoutParams{
					CheckoutID:   "c1",
					TxHash:       "hash",
					ResolvedAt:   now,
					Subscription: domain.Subscription{ID: "s1", FanAddress: "GFAN", CreatorAddress: "GCREATOR", PlanID: "1", Expiry: now.Unix() + 60},
				})
				results <- err
				return
			}
			_, err := repo.FailCheckout(ctx, FailCheckoutParams{CheckoutID: "c1", Status: domain.CheckoutStatusFailed, Error: "boom", ResolvedAt: now})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrCheckoutNotPending)
	}
	assert.Equal(t, 1, wins)
}

func TestMemoryRepository_ResolveRejectsExpiredCheckout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateCheckout(ctx, newPendingCheckout("c1", now)))

	_, err := repo.FailCheckout(ctx, FailCheckoutParams{CheckoutID: "c1", Status: domain.CheckoutStatusRejected, Error: "late", ResolvedAt: now.Add(time.Hour)})
	require.ErrorIs(t, err, ErrCheckoutNotPending)

	_, err = repo.FailCheckout(ctx, FailCheckoutParams{CheckoutID: "missing", Status: domain.CheckoutStatusRejected, ResolvedAt: now})
	require.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestMemoryRepository_ExpireCheckout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateCheckout(ctx, newPendingCheckout("c1", now)))

	require.NoError(t, repo.ExpireCheckout(ctx, "c1", now.Add(time.Minute)))
	checkout, err := repo.GetCheckoutByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusPending, checkout.Status)

	require.NoError(t, repo.ExpireCheckout(ctx, "c1", now.Add(16*time.Minute)))
	checkout, err = repo.GetCheckoutByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusExpired, checkout.Status)

	require.ErrorIs(t, repo.ExpireCheckout(ctx, "missing", now), ErrCheckoutNotFound)
}

func TestMemoryRepository_UpsertSubscriptionRenewsPair(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()

	first, err := repo.UpsertSubscription(ctx, domain.Subscription{
		ID: "s1", FanAddress: "GFAN", CreatorAddress: "GCREATOR", PlanID: "1", Expiry: now.Unix() + 100, UpdatedAt: now,
	})
	require.NoError(t, err)

	renewed, err := repo.UpsertSubscription(ctx, domain.Subscription{
		ID: "s2", FanAddress: "GFAN", CreatorAddress: "GCREATOR", PlanID: "2", Expiry: now.Unix() + 500, UpdatedAt: now.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, renewed.ID)
	assert.Equal(t, "2", renewed.PlanID)
	assert.Equal(t, now.Unix()+500, renewed.Expiry)

	shorter, err := repo.UpsertSubscription(ctx, domain.Subscription{
		ID: "s3", FanAddress: "GFAN", CreatorAddress: "GCREATOR", PlanID: "3", Expiry: now.Unix() + 50, UpdatedAt: now.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, now.Unix()+500, shorter.Expiry)

	subs, err := repo.ListSubscriptionsByFan(ctx, "GFAN")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestMemoryRepository_DeleteStaleCheckouts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()

	old := newPendingCheckout("old-completed", now.Add(-40*24*time.Hour))
	old.Status = domain.CheckoutStatusCompleted
	abandoned := newPendingCheckout("old-pending", now.Add(-40*24*time.Hour))
	fresh := newPendingCheckout("fresh", now)
	for _, c := range []*domain.Checkout{old, abandoned, fresh} {
		require.NoError(t, repo.CreateCheckout(ctx, c))
	}

	deleted, err := repo.DeleteStaleCheckouts(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = repo.GetCheckoutByID(ctx, "fresh")
	require.NoError(t, err)
	_, err = repo.GetCheckoutByID(ctx, "old-completed")
	require.ErrorIs(t, err, ErrCheckoutNotFound)
}
