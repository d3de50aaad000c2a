package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/myfans/subscription-service/internal/domain"
	"github.com/myfans/subscription-service/internal/store"
)

const (
	msgConfirmed       = "Subscription confirmed successfully"
	msgRejected        = "Transaction rejected by user"
	msgFailed          = "Transaction failed"
	defaultRejectError = "transaction rejected by user"
	defaultFailError   = "transaction failed"
)

// ConfirmSubscription completes a checkout and grants (or renews) the fan's subscription in
// one atomic store operation. A missing txHash is replaced by a tx_<millis> placeholder.
func (s *Service) ConfirmSubscription(ctx context.Context, checkoutID, txHash string) (*domain.CheckoutResolution, error) {
	checkout, err := s.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if checkout.Status.IsTerminal() {
		return nil, ErrCheckoutAlreadyResolved
	}

	plan, err := s.getPlan(ctx, checkout.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	hash := strings.TrimSpace(txHash)
	if hash == "" {
		hash = fmt.Sprintf("tx_%d", now.UnixMilli())
	}

	completed, sub, err := s.repo.CompleteCheckout(ctx, store.CompleteCheckoutParams{
		CheckoutID: checkout.ID,
		TxHash:     hash,
		ResolvedAt: now,
		Subscription: domain.Subscription{
			ID:             s.newID(),
			FanAddress:     checkout.FanAddress,
			CreatorAddress: checkout.CreatorAddress,
			PlanID:         plan.ID,
			Expiry:         plan.ExpiryFrom(now),
			Status:         domain.SubscriptionStatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	})
	if err != nil {
		return nil, s.resolutionError(ctx, checkout.ID, now, err)
	}

	s.logger.Info("checkout completed", "checkout_id", completed.ID, "tx_hash", hash, "subscription_id", sub.ID, "expiry", sub.Expiry)
	s.publishCheckoutEvent(ctx, routingKeyCheckoutCompleted, completed, now)
	s.publishSubscriptionActivated(ctx, sub, completed.ID, now)

	return &domain.CheckoutResolution{
		Success:      true,
		CheckoutID:   completed.ID,
		Status:       completed.Status,
		TxHash:       hash,
		ExplorerURL:  s.ExplorerURL(hash),
		Message:      msgConfirmed,
		Subscription: sub,
	}, nil
}

// FailCheckout records an unsuccessful attempt as REJECTED (wallet declined) or FAILED.
// No subscription is touched.
func (s *Service) FailCheckout(ctx context.Context, checkoutID, errorMessage string, isRejected bool) (*domain.CheckoutResolution, error) {
	checkout, err := s.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if checkout.Status.IsTerminal() {
		return nil, ErrCheckoutAlreadyResolved
	}

	status, message, reason := domain.CheckoutStatusFailed, msgFailed, defaultFailError
	routingKey := routingKeyCheckoutFailed
	if isRejected {
		status, message, reason = domain.CheckoutStatusRejected, msgRejected, defaultRejectError
		routingKey = routingKeyCheckoutRejected
	}
	if trimmed := strings.TrimSpace(errorMessage); trimmed != "" {
		reason = trimmed
	}

	now := s.now()
	failed, err := s.repo.FailCheckout(ctx, store.FailCheckoutParams{
		CheckoutID: checkout.ID,
		Status:     status,
		Error:      reason,
		ResolvedAt: now,
	})
	if err != nil {
		return nil, s.resolutionError(ctx, checkout.ID, now, err)
	}

	s.logger.Info("checkout resolved unsuccessfully", "checkout_id", failed.ID, "status", failed.Status, "error", reason)
	s.publishCheckoutEvent(ctx, routingKey, failed, now)

	return &domain.CheckoutResolution{
		Success:    false,
		CheckoutID: failed.ID,
		Status:     failed.Status,
		Error:      reason,
		Message:    message,
	}, nil
}

// resolutionError maps a lost compare-and-swap to the reason it was lost. The checkout may
// have been resolved by a concurrent call or may have crossed its TTL since it was read.
func (s *Service) resolutionError(ctx context.Context, checkoutID string, now time.Time, err error) error {
	switch {
	case errors.Is(err, store.ErrCheckoutNotFound):
		return ErrCheckoutNotFound
	case errors.Is(err, store.ErrCheckoutNotPending):
		current, getErr := s.repo.GetCheckoutByID(ctx, checkoutID)
		if getErr == nil && current.EffectiveStatus(now) == domain.CheckoutStatusExpired {
			if current.Status == domain.CheckoutStatusPending {
				if expErr := s.repo.ExpireCheckout(ctx, checkoutID, now); expErr != nil {
					s.logger.Warn("failed to persist checkout expiry", "checkout_id", checkoutID, "error", expErr)
				}
			}
			return ErrCheckoutExpired
		}
		return ErrCheckoutAlreadyResolved
	default:
		return err
	}
}

// ExplorerURL builds the block explorer link for a transaction hash.
func (s *Service) ExplorerURL(txHash string) string {
	return fmt.Sprintf("%s/%s/tx/%s", strings.TrimSuffix(s.opts.ExplorerBaseURL, "/"), s.opts.Network, url.PathEscape(txHash))
}
