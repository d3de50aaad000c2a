/**
 * @description
 * PostgreSQL implementation of the subscription-service data access layer.
 * Amounts are stored as BIGINT stroops. Checkout resolution is a compare-and-swap on
 * status so that only one resolving call can win for a given checkout id.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pool.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/myfans/subscription-service/internal/domain"
)

const (
	planColumns = `id, creator_address, name, description, asset_code, asset_issuer,
		amount, interval_days, active, created_at`
	checkoutColumns = `id, fan_address, creator_address, plan_id, asset_code, asset_issuer,
		amount, fee, total, status, expires_at, tx_hash, error, created_at, updated_at`
	subscriptionColumns = `id, fan_address, creator_address, plan_id, expiry, status, created_at, updated_at`
)

// PostgresRepository handles database operations for plans, checkouts and subscriptions.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var plan domain.Plan
	var amount int64
	if err := row.Scan(
		&plan.ID,
		&plan.CreatorAddress,
		&plan.Name,
		&plan.Description,
		&plan.AssetCode,
		&plan.AssetIssuer,
		&amount,
		&plan.IntervalDays,
		&plan.Active,
		&plan.CreatedAt,
	); err != nil {
		return nil, err
	}
	plan.Amount = domain.Amount(amount)
	return &plan, nil
}

func scanCheckout(row pgx.Row) (*domain.Checkout, error) {
	var checkout domain.Checkout
	var amount, fee, total int64
	var status string
	if err := row.Scan(
		&checkout.ID,
		&checkout.FanAddress,
		&checkout.CreatorAddress,
		&checkout.PlanID,
		&checkout.AssetCode,
		&checkout.AssetIssuer,
		&amount,
		&fee,
		&total,
		&status,
		&checkout.ExpiresAt,
		&checkout.TxHash,
		&checkout.Error,
		&checkout.CreatedAt,
		&checkout.UpdatedAt,
	); err != nil {
		return nil, err
	}
	checkout.Amount = domain.Amount(amount)
	checkout.Fee = domain.Amount(fee)
	checkout.Total = domain.Amount(total)
	checkout.Status = domain.CheckoutStatus(status)
	return &checkout, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var status string
	if err := row.Scan(
		&sub.ID,
		&sub.FanAddress,
		&sub.CreatorAddress,
		&sub.PlanID,
		&sub.Expiry,
		&status,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.Status = domain.SubscriptionStatus(status)
	return &sub, nil
}

// GetPlanByID retrieves a catalog plan.
func (r *PostgresRepository) GetPlanByID(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`
	plan, err := scanPlan(r.db.QueryRow(ctx, query, planID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// ListPlansByCreator retrieves a creator's active plans.
func (r *PostgresRepository) ListPlansByCreator(ctx context.Context, creatorAddress string) ([]domain.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE creator_address = $1 AND active = TRUE
		ORDER BY amount ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, creatorAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// CreateCheckout inserts a new pending checkout.
func (r *PostgresRepository) CreateCheckout(ctx context.Context, checkout *domain.Checkout) error {
	query := `
		INSERT INTO checkouts (
			id, fan_address, creator_address, plan_id, asset_code, asset_issuer,
			amount, fee, total, status, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		checkout.ID,
		checkout.FanAddress,
		checkout.CreatorAddress,
		checkout.PlanID,
		checkout.AssetCode,
		checkout.AssetIssuer,
		checkout.Amount.Stroops(),
		checkout.Fee.Stroops(),
		checkout.Total.Stroops(),
		string(checkout.Status),
		checkout.ExpiresAt,
		checkout.CreatedAt,
		checkout.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("checkout %s already exists: %w", checkout.ID, err)
		}
		return err
	}
	return nil
}

// GetCheckoutByID retrieves a checkout by its id.
func (r *PostgresRepository) GetCheckoutByID(ctx context.Context, checkoutID string) (*domain.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE id = $1`
	checkout, err := scanCheckout(r.db.QueryRow(ctx, query, checkoutID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	return checkout, nil
}

// ExpireCheckout transitions a pending checkout whose TTL has elapsed to expired.
// It is a no-op for any other checkout.
func (r *PostgresRepository) ExpireCheckout(ctx context.Context, checkoutID string, now time.Time) error {
	query := `
		UPDATE checkouts
		SET status = 'expired',
		    updated_at = $2
		WHERE id = $1
		  AND status = 'pending'
		  AND expires_at < $2
	`
	tag, err := r.db.Exec(ctx, query, checkoutID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetCheckoutByID(ctx, checkoutID); err != nil {
			return err
		}
	}
	return nil
}

// CompleteCheckout marks a pending checkout completed and upserts the subscription it
// grants in one transaction.
func (r *PostgresRepository) CompleteCheckout(ctx context.Context, params CompleteCheckoutParams) (*domain.Checkout, *domain.Subscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE checkouts
		SET status = 'completed',
		    tx_hash = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND expires_at >= $3
		RETURNING ` + checkoutColumns
	checkout, err := scanCheckout(tx.QueryRow(ctx, query, params.CheckoutID, params.TxHash, params.ResolvedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, r.classifyUnresolvable(ctx, tx, params.CheckoutID)
		}
		return nil, nil, err
	}

	sub, err := upsertSubscription(ctx, tx, params.Subscription, params.ResolvedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return checkout, sub, nil
}

// FailCheckout marks a pending checkout failed or rejected.
func (r *PostgresRepository) FailCheckout(ctx context.Context, params FailCheckoutParams) (*domain.Checkout, error) {
	query := `
		UPDATE checkouts
		SET status = $2,
		    error = $3,
		    updated_at = $4
		WHERE id = $1
		  AND status = 'pending'
		  AND expires_at >= $4
		RETURNING ` + checkoutColumns
	checkout, err := scanCheckout(r.db.QueryRow(ctx, query, params.CheckoutID, string(params.Status), params.Error, params.ResolvedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyUnresolvable(ctx, r.db, params.CheckoutID)
		}
		return nil, err
	}
	return checkout, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) classifyUnresolvable(ctx context.Context, q queryRower, checkoutID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM checkouts WHERE id = $1)`, checkoutID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrCheckoutNotFound
	}
	return ErrCheckoutNotPending
}

// DeleteStaleCheckouts removes resolved checkouts last touched before cutoff, and pending
// checkouts whose TTL ended before cutoff.
func (r *PostgresRepository) DeleteStaleCheckouts(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM checkouts
		WHERE (status <> 'pending' AND updated_at < $1)
		   OR (status = 'pending' AND expires_at < $1)
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertSubscription creates or renews the subscription for a fan/creator pair.
func (r *PostgresRepository) UpsertSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	return upsertSubscription(ctx, r.db, sub, sub.UpdatedAt)
}

func upsertSubscription(ctx context.Context, q queryRower, sub domain.Subscription, now time.Time) (*domain.Subscription, error) {
	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	query := `
		INSERT INTO subscriptions (id, fan_address, creator_address, plan_id, expiry, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6, $7)
		ON CONFLICT (fan_address, creator_address) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			expiry = GREATEST(subscriptions.expiry, EXCLUDED.expiry),
			status = 'active',
			updated_at = EXCLUDED.updated_at
		RETURNING ` + subscriptionColumns
	return scanSubscription(q.QueryRow(ctx, query,
		sub.ID,
		sub.FanAddress,
		sub.CreatorAddress,
		sub.PlanID,
		sub.Expiry,
		createdAt,
		now,
	))
}

// GetSubscriptionByPair retrieves the governing subscription for a fan/creator pair.
func (r *PostgresRepository) GetSubscriptionByPair(ctx context.Context, fanAddress, creatorAddress string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE fan_address = $1 AND creator_address = $2`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, fanAddress, creatorAddress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// GetSubscriptionByID retrieves a subscription by id.
func (r *PostgresRepository) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// ListSubscriptionsByFan retrieves every subscription held by a fan.
func (r *PostgresRepository) ListSubscriptionsByFan(ctx context.Context, fanAddress string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE fan_address = $1`
	rows, err := r.db.Query(ctx, query, fanAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// MarkSubscriptionExpired persists the active -> expired transition once expiry has passed.
func (r *PostgresRepository) MarkSubscriptionExpired(ctx context.Context, subscriptionID string, now time.Time) error {
	query := `
		UPDATE subscriptions
		SET status = 'expired',
		    updated_at = $2
		WHERE id = $1
		  AND status = 'active'
		  AND expiry <= $3
	`
	_, err := r.db.Exec(ctx, query, subscriptionID, now, now.Unix())
	return err
}

// UpdateSubscriptionStatus sets a subscription's stored status.
func (r *PostgresRepository) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus, now time.Time) (*domain.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, subscriptionID, string(status), now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}
