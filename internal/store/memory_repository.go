package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/myfans/subscription-service/internal/domain"
)

// MemoryRepository keeps plans, checkouts and subscriptions in process memory.
// Every method takes the same mutex, which makes each call atomic per key.
type MemoryRepository struct {
	mu            sync.Mutex
	plans         map[string]domain.Plan
	checkouts     map[string]domain.Checkout
	subscriptions map[string]domain.Subscription
	// fan:creator -> subscription id
	pairs map[string]string
}

// NewMemoryRepository creates an in-memory repository seeded with the given plans.
func NewMemoryRepository(plans ...domain.Plan) *MemoryRepository {
	r := &MemoryRepository{
		plans:         make(map[string]domain.Plan, len(plans)),
		checkouts:     make(map[string]domain.Checkout),
		subscriptions: make(map[string]domain.Subscription),
		pairs:         make(map[string]string),
	}
	for _, p := range plans {
		r.plans[p.ID] = p
	}
	return r
}

func pairKey(fan, creator string) string {
	return fan + ":" + creator
}

func (r *MemoryRepository) GetPlanByID(ctx context.Context, planID string) (*domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plan, ok := r.plans[planID]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return &plan, nil
}

func (r *MemoryRepository) ListPlansByCreator(ctx context.Context, creatorAddress string) ([]domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var plans []domain.Plan
	for _, p := range r.plans {
		if p.CreatorAddress == creatorAddress && p.Active {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

func (r *MemoryRepository) CreateCheckout(ctx context.Context, checkout *domain.Checkout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkouts[checkout.ID] = *checkout
	return nil
}

func (r *MemoryRepository) GetCheckoutByID(ctx context.Context, checkoutID string) (*domain.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkout, ok := r.checkouts[checkoutID]
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	return &checkout, nil
}

func (r *MemoryRepository) ExpireCheckout(ctx context.Context, checkoutID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkout, ok := r.checkouts[checkoutID]
	if !ok {
		return ErrCheckoutNotFound
	}
	if checkout.Status == domain.CheckoutStatusPending && checkout.EffectiveStatus(now) == domain.CheckoutStatusExpired {
		checkout.Status = domain.CheckoutStatusExpired
		checkout.UpdatedAt = now
		r.checkouts[checkoutID] = checkout
	}
	return nil
}

func (r *MemoryRepository) CompleteCheckout(ctx context.Context, params CompleteCheckoutParams) (*domain.Checkout, *domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkout, ok := r.checkouts[params.CheckoutID]
	if !ok {
		return nil, nil, ErrCheckoutNotFound
	}
	if checkout.EffectiveStatus(params.ResolvedAt) != domain.CheckoutStatusPending {
		return nil, nil, ErrCheckoutNotPending
	}

	txHash := params.TxHash
	checkout.Status = domain.CheckoutStatusCompleted
	checkout.TxHash = &txHash
	checkout.UpdatedAt = params.ResolvedAt
	r.checkouts[checkout.ID] = checkout

	sub := r.upsertSubscriptionLocked(params.Subscription, params.ResolvedAt)
	return &checkout, &sub, nil
}

func (r *MemoryRepository) FailCheckout(ctx context.Context, params FailCheckoutParams) (*domain.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkout, ok := r.checkouts[params.CheckoutID]
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	if checkout.EffectiveStatus(params.ResolvedAt) != domain.CheckoutStatusPending {
		return nil, ErrCheckoutNotPending
	}

	reason := params.Error
	checkout.Status = params.Status
	checkout.Error = &reason
	checkout.UpdatedAt = params.ResolvedAt
	r.checkouts[checkout.ID] = checkout
	return &checkout, nil
}

func (r *MemoryRepository) DeleteStaleCheckouts(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, checkout := range r.checkouts {
		stale := checkout.Status.IsTerminal() && checkout.UpdatedAt.Before(cutoff)
		abandoned := checkout.Status == domain.CheckoutStatusPending && checkout.ExpiresAt.Before(cutoff)
		if stale || abandoned {
			delete(r.checkouts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryRepository) UpsertSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.upsertSubscriptionLocked(sub, sub.UpdatedAt)
	return &stored, nil
}

func (r *MemoryRepository) upsertSubscriptionLocked(sub domain.Subscription, now time.Time) domain.Subscription {
	key := pairKey(sub.FanAddress, sub.CreatorAddress)
	if id, ok := r.pairs[key]; ok {
		existing := r.subscriptions[id]
		existing.PlanID = sub.PlanID
		if sub.Expiry > existing.Expiry {
			existing.Expiry = sub.Expiry
		}
		existing.Status = domain.SubscriptionStatusActive
		existing.UpdatedAt = now
		r.subscriptions[id] = existing
		return existing
	}

	sub.Status = domain.SubscriptionStatusActive
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	r.subscriptions[sub.ID] = sub
	r.pairs[key] = sub.ID
	return sub
}

func (r *MemoryRepository) GetSubscriptionByPair(ctx context.Context, fanAddress, creatorAddress string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.pairs[pairKey(fanAddress, creatorAddress)]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	sub := r.subscriptions[id]
	return &sub, nil
}

func (r *MemoryRepository) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscriptions[subscriptionID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *MemoryRepository) ListSubscriptionsByFan(ctx context.Context, fanAddress string) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var subs []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.FanAddress == fanAddress {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (r *MemoryRepository) MarkSubscriptionExpired(ctx context.Context, subscriptionID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscriptions[subscriptionID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if sub.Status == domain.SubscriptionStatusActive && !sub.IsActiveAt(now) {
		sub.Status = domain.SubscriptionStatusExpired
		sub.UpdatedAt = now
		r.subscriptions[subscriptionID] = sub
	}
	return nil
}

func (r *MemoryRepository) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus, now time.Time) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscriptions[subscriptionID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	sub.Status = status
	sub.UpdatedAt = now
	r.subscriptions[subscriptionID] = sub
	return &sub, nil
}
