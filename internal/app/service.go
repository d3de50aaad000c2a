/**
 * @description
 * This file contains the core business logic for the subscription service.
 * The Service orchestrates the plan catalog, checkout sessions and the subscription
 * ledger, and publishes domain events once a checkout has been resolved.
 *
 * @dependencies
 * - github.com/google/uuid: For checkout and subscription ids.
 * - internal/domain, internal/store: For domain models and data access.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/myfans/subscription-service/internal/domain"
	"github.com/myfans/subscription-service/internal/store"
)

var (
	ErrPlanNotFound            = errors.New("plan not found")
	ErrCheckoutNotFound        = errors.New("checkout not found")
	ErrCheckoutExpired         = errors.New("checkout session has expired")
	ErrCheckoutAlreadyResolved = errors.New("checkout already resolved")
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrRateLimited             = errors.New("too many checkout attempts")
)

// RateLimitError is returned when a fan exceeds the checkout creation limit.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %d seconds", ErrRateLimited.Error(), e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

func invalidRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Repository defines the database operations the service needs.
type Repository interface {
	GetPlanByID(ctx context.Context, planID string) (*domain.Plan, error)
	ListPlansByCreator(ctx context.Context, creatorAddress string) ([]domain.Plan, error)

	CreateCheckout(ctx context.Context, checkout *domain.Checkout) error
	GetCheckoutByID(ctx context.Context, checkoutID string) (*domain.Checkout, error)
	ExpireCheckout(ctx context.Context, checkoutID string, now time.Time) error
	CompleteCheckout(ctx context.Context, params store.CompleteCheckoutParams) (*domain.Checkout, *domain.Subscription, error)
	FailCheckout(ctx context.Context, params store.FailCheckoutParams) (*domain.Checkout, error)
	DeleteStaleCheckouts(ctx context.Context, cutoff time.Time) (int64, error)

	UpsertSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error)
	GetSubscriptionByPair(ctx context.Context, fanAddress, creatorAddress string) (*domain.Subscription, error)
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	ListSubscriptionsByFan(ctx context.Context, fanAddress string) ([]domain.Subscription, error)
	MarkSubscriptionExpired(ctx context.Context, subscriptionID string, now time.Time) error
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus, now time.Time) (*domain.Subscription, error)
}

// WalletAdapter reports the balances held by a fan's wallet.
type WalletAdapter interface {
	GetWallet(ctx context.Context, address string) (*domain.WalletStatus, error)
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RateLimiter counts attempts per subject inside a fixed window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Options are the tunables of the checkout workflow.
type Options struct {
	FeeBps                     int64
	CheckoutTTL                time.Duration
	Network                    string
	ExplorerBaseURL            string
	EventsExchange             string
	CheckoutRateLimitPerMinute int
}

// Service provides the business logic for checkouts and subscriptions.
type Service struct {
	repo      Repository
	wallet    WalletAdapter
	publisher EventPublisher
	limiter   RateLimiter
	fees      FeeCalculator
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewService creates a new subscription service. publisher and limiter may be nil.
func NewService(repo Repository, wallet WalletAdapter, publisher EventPublisher, limiter RateLimiter, logger *slog.Logger, opts Options) *Service {
	if opts.CheckoutTTL <= 0 {
		opts.CheckoutTTL = 15 * time.Minute
	}
	if opts.EventsExchange == "" {
		opts.EventsExchange = "myfans.events"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:      repo,
		wallet:    wallet,
		publisher: publisher,
		limiter:   limiter,
		fees:      FeeCalculator{FeeBps: opts.FeeBps},
		opts:      opts,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// WithClock replaces the service clock. Used by tests to move time forward.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Fees exposes the fee calculator used for pricing.
func (s *Service) Fees() FeeCalculator {
	return s.fees
}

// GetPlan returns a plan by id.
func (s *Service) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	return s.getPlan(ctx, planID)
}

// GetPlanSummary returns a plan with its computed fee and total.
func (s *Service) GetPlanSummary(ctx context.Context, planID string) (*domain.PlanSummary, error) {
	plan, err := s.getPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(*plan)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListCreatorPlans returns the priced, active plans of a creator.
func (s *Service) ListCreatorPlans(ctx context.Context, creatorAddress string) ([]domain.PlanSummary, error) {
	if creatorAddress == "" {
		return nil, invalidRequest("creator address is required")
	}

	plans, err := s.repo.ListPlansByCreator(ctx, creatorAddress)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.PlanSummary, 0, len(plans))
	for _, p := range plans {
		summary, err := s.summarize(p)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Service) getPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	if planID == "" {
		return nil, ErrPlanNotFound
	}
	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *Service) summarize(plan domain.Plan) (domain.PlanSummary, error) {
	fee, total, err := s.fees.price(plan.Amount)
	if err != nil {
		return domain.PlanSummary{}, err
	}
	return domain.PlanSummary{
		PlanID:         plan.ID,
		CreatorAddress: plan.CreatorAddress,
		Name:           plan.Name,
		Description:    plan.Description,
		AssetCode:      plan.AssetCode,
		AssetIssuer:    plan.AssetIssuer,
		Amount:         plan.Amount,
		Fee:            fee,
		FeeBps:         s.fees.FeeBps,
		Total:          total,
		IntervalDays:   plan.IntervalDays,
	}, nil
}
