package app

import (
	"context"
	"time"

	"github.com/myfans/subscription-service/internal/domain"
)

const (
	routingKeyCheckoutCompleted     = "checkout.completed"
	routingKeyCheckoutFailed        = "checkout.failed"
	routingKeyCheckoutRejected      = "checkout.rejected"
	routingKeySubscriptionActivated = "subscription.activated"
)

// CheckoutEvent is published when a checkout reaches a terminal state through resolution.
type CheckoutEvent struct {
	CheckoutID     string                `json:"checkout_id"`
	FanAddress     string                `json:"fan_address"`
	CreatorAddress string                `json:"creator_address"`
	PlanID         string                `json:"plan_id"`
	AssetCode      string                `json:"asset_code"`
	Total          domain.Amount         `json:"total"`
	Status         domain.CheckoutStatus `json:"status"`
	TxHash         *string               `json:"tx_hash,omitempty"`
	Error          *string               `json:"error,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// SubscriptionActivatedEvent is published when a confirm grants or renews a subscription.
type SubscriptionActivatedEvent struct {
	SubscriptionID string    `json:"subscription_id"`
	CheckoutID     string    `json:"checkout_id"`
	FanAddress     string    `json:"fan_address"`
	CreatorAddress string    `json:"creator_address"`
	PlanID         string    `json:"plan_id"`
	Expiry         int64     `json:"expiry"`
	Timestamp      time.Time `json:"timestamp"`
}

func (s *Service) publishCheckoutEvent(ctx context.Context, routingKey string, checkout *domain.Checkout, now time.Time) {
	s.publish(ctx, routingKey, CheckoutEvent{
		CheckoutID:     checkout.ID,
		FanAddress:     checkout.FanAddress,
		CreatorAddress: checkout.CreatorAddress,
		PlanID:         checkout.PlanID,
		AssetCode:      checkout.AssetCode,
		Total:          checkout.Total,
		Status:         checkout.Status,
		TxHash:         checkout.TxHash,
		Error:          checkout.Error,
		Timestamp:      now,
	})
}

func (s *Service) publishSubscriptionActivated(ctx context.Context, sub *domain.Subscription, checkoutID string, now time.Time) {
	s.publish(ctx, routingKeySubscriptionActivated, SubscriptionActivatedEvent{
		SubscriptionID: sub.ID,
		CheckoutID:     checkoutID,
		FanAddress:     sub.FanAddress,
		CreatorAddress: sub.CreatorAddress,
		PlanID:         sub.PlanID,
		Expiry:         sub.Expiry,
		Timestamp:      now,
	})
}

// publish is best effort. The resolution is already committed when it runs.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.opts.EventsExchange, routingKey, body); err != nil {
		s.logger.Warn("failed to publish event", "exchange", s.opts.EventsExchange, "routing_key", routingKey, "error", err)
	}
}
