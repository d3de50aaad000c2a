/**
 * @description
 * Shared definitions for the data access layer of the subscription-service.
 * Two implementations exist: PostgresRepository for deployments and MemoryRepository
 * for local runs and tests. Both serialize checkout resolution per checkout id.
 */
package store

import (
	"errors"
	"time"

	"github.com/myfans/subscription-service/internal/domain"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrCheckoutNotFound     = errors.New("checkout not found")
	ErrCheckoutNotPending   = errors.New("checkout is not pending")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// CompleteCheckoutParams carries the successful resolution of a checkout and the
// subscription it grants. Both are written atomically.
type CompleteCheckoutParams struct {
	CheckoutID   string
	TxHash       string
	ResolvedAt   time.Time
	Subscription domain.Subscription
}

// FailCheckoutParams carries an unsuccessful resolution of a checkout.
type FailCheckoutParams struct {
	CheckoutID string
	Status     domain.CheckoutStatus
	Error      string
	ResolvedAt time.Time
}
