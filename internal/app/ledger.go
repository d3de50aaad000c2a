package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/myfans/subscription-service/internal/domain"
	"github.com/myfans/subscription-service/internal/store"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	SortByExpiry  = "expiry"
	SortByCreated = "created"
)

// ListSubscriptionsParams filters and paginates a fan's subscriptions.
type ListSubscriptionsParams struct {
	FanAddress string
	Status     string
	Sort       string
	Page       int
	Limit      int
}

// CreateSubscription grants or renews the fan's subscription to a creator. A repeat call
// for the same pair updates the single governing record and keeps the later expiry.
func (s *Service) CreateSubscription(ctx context.Context, fanAddress, creatorAddress, planID string, expiry int64) (*domain.Subscription, error) {
	fanAddress = strings.TrimSpace(fanAddress)
	creatorAddress = strings.TrimSpace(creatorAddress)
	if fanAddress == "" || creatorAddress == "" {
		return nil, invalidRequest("fan and creator addresses are required")
	}
	if expiry <= 0 {
		return nil, invalidRequest("expiry must be a positive epoch timestamp")
	}

	plan, err := s.getPlan(ctx, strings.TrimSpace(planID))
	if err != nil {
		return nil, err
	}

	now := s.now()
	return s.repo.UpsertSubscription(ctx, domain.Subscription{
		ID:             s.newID(),
		FanAddress:     fanAddress,
		CreatorAddress: creatorAddress,
		PlanID:         plan.ID,
		Expiry:         expiry,
		Status:         domain.SubscriptionStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// IsSubscriber reports whether the fan currently holds an entitlement to the creator.
// Only expiry is consulted, never the stored status.
func (s *Service) IsSubscriber(ctx context.Context, fanAddress, creatorAddress string) (bool, error) {
	sub, err := s.repo.GetSubscriptionByPair(ctx, strings.TrimSpace(fanAddress), strings.TrimSpace(creatorAddress))
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.IsActiveAt(s.now()), nil
}

// GetSubscription returns one subscription with its effective status.
func (s *Service) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByID(ctx, strings.TrimSpace(subscriptionID))
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	materialized := s.materializeSubscription(ctx, *sub, s.now())
	return &materialized, nil
}

// CancelSubscription marks the fan's subscription cancelled. Access still ends at expiry.
// Subscriptions owned by another fan are reported as not found.
func (s *Service) CancelSubscription(ctx context.Context, fanAddress, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.FanAddress != strings.TrimSpace(fanAddress) {
		return nil, ErrSubscriptionNotFound
	}
	if sub.Status == domain.SubscriptionStatusCancelled {
		return sub, nil
	}

	updated, err := s.repo.UpdateSubscriptionStatus(ctx, sub.ID, domain.SubscriptionStatusCancelled, s.now())
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	s.logger.Info("subscription cancelled", "subscription_id", updated.ID, "fan", updated.FanAddress, "creator", updated.CreatorAddress)
	return updated, nil
}

// ListSubscriptions returns a page of the fan's subscriptions. Status filtering and sorting
// operate on effective status, so lapsed records are reported as expired.
func (s *Service) ListSubscriptions(ctx context.Context, params ListSubscriptionsParams) (*domain.SubscriptionPage, error) {
	fan := strings.TrimSpace(params.FanAddress)
	if fan == "" {
		return nil, invalidRequest("fan address is required")
	}

	var statusFilter domain.SubscriptionStatus
	if raw := strings.TrimSpace(params.Status); raw != "" {
		parsed, ok := domain.ParseSubscriptionStatus(raw)
		if !ok {
			return nil, invalidRequest("unknown subscription status %q", raw)
		}
		statusFilter = parsed
	}

	page, limit := normalizePagination(params.Page, params.Limit)

	subs, err := s.repo.ListSubscriptionsByFan(ctx, fan)
	if err != nil {
		return nil, err
	}

	now := s.now()
	filtered := make([]domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		sub = s.materializeSubscription(ctx, sub, now)
		if statusFilter != "" && sub.Status != statusFilter {
			continue
		}
		filtered = append(filtered, sub)
	}

	sortSubscriptions(filtered, params.Sort)

	total := len(filtered)
	start := (page - 1) * limit
	items := []domain.Subscription{}
	if start < total {
		end := start + limit
		if end > total {
			end = total
		}
		items = filtered[start:end]
	}

	return &domain.SubscriptionPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// materializeSubscription applies lazy expiry. Every subscription read path goes through it.
func (s *Service) materializeSubscription(ctx context.Context, sub domain.Subscription, now time.Time) domain.Subscription {
	effective := sub.EffectiveStatus(now)
	if effective == sub.Status {
		return sub
	}
	if err := s.repo.MarkSubscriptionExpired(ctx, sub.ID, now); err != nil {
		s.logger.Warn("failed to persist subscription expiry", "subscription_id", sub.ID, "error", err)
	}
	sub.Status = effective
	return sub
}

func normalizePagination(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func sortSubscriptions(subs []domain.Subscription, order string) {
	if strings.EqualFold(strings.TrimSpace(order), SortByCreated) {
		sort.SliceStable(subs, func(i, j int) bool {
			if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
				return subs[i].ID < subs[j].ID
			}
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		})
		return
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].Expiry == subs[j].Expiry {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].Expiry < subs[j].Expiry
	})
}
