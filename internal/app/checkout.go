package app

import (
	"context"
	"errors"
	"strings"

	"github.com/myfans/subscription-service/internal/domain"
	"github.com/myfans/subscription-service/internal/store"
)

const (
	nativeAssetCode = "XLM"
	// baseNetworkFee is the Stellar base fee for a single-operation transaction.
	baseNetworkFee = domain.Amount(100)
	memoPrefix     = "sub:"
	memoIDLength   = 8
)

// CreateCheckoutRequest holds the data needed to open a checkout session.
type CreateCheckoutRequest struct {
	FanAddress     string  `json:"-"`
	CreatorAddress string  `json:"creator_address"`
	PlanID         string  `json:"plan_id"`
	AssetCode      string  `json:"asset_code,omitempty"`
	AssetIssuer    *string `json:"asset_issuer,omitempty"`
}

// CreateCheckout prices a plan and stores a new PENDING checkout for the fan.
func (s *Service) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*domain.Checkout, error) {
	fan := strings.TrimSpace(req.FanAddress)
	creator := strings.TrimSpace(req.CreatorAddress)
	if fan == "" {
		return nil, invalidRequest("fan address is required")
	}
	if creator == "" {
		return nil, invalidRequest("creator address is required")
	}

	if err := s.consumeCheckoutQuota(ctx, fan); err != nil {
		return nil, err
	}

	plan, err := s.getPlan(ctx, strings.TrimSpace(req.PlanID))
	if err != nil {
		return nil, err
	}
	if plan.CreatorAddress != creator {
		return nil, invalidRequest("plan %s does not belong to creator %s", plan.ID, creator)
	}
	if !plan.Active {
		return nil, invalidRequest("plan %s is not available", plan.ID)
	}

	assetCode := plan.AssetCode
	assetIssuer := plan.AssetIssuer
	if code := strings.ToUpper(strings.TrimSpace(req.AssetCode)); code != "" {
		assetCode = code
		assetIssuer = req.AssetIssuer
	}
	if assetCode == nativeAssetCode {
		assetIssuer = nil
	}

	fee, total, err := s.fees.price(plan.Amount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	checkout := &domain.Checkout{
		ID:             s.newID(),
		FanAddress:     fan,
		CreatorAddress: creator,
		PlanID:         plan.ID,
		AssetCode:      assetCode,
		AssetIssuer:    assetIssuer,
		Amount:         plan.Amount,
		Fee:            fee,
		Total:          total,
		Status:         domain.CheckoutStatusPending,
		ExpiresAt:      now.Add(s.opts.CheckoutTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateCheckout(ctx, checkout); err != nil {
		return nil, err
	}

	s.logger.Info("checkout created", "checkout_id", checkout.ID, "plan_id", plan.ID, "fan", fan, "total", checkout.Total.String())
	return checkout, nil
}

func (s *Service) consumeCheckoutQuota(ctx context.Context, fan string) error {
	limit := s.opts.CheckoutRateLimitPerMinute
	if s.limiter == nil || limit <= 0 {
		return nil
	}

	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, "checkout_create", fan, limit, rateLimitWindow)
	if err != nil {
		// Fail open when the limiter backend is unreachable.
		s.logger.Warn("checkout rate limit unavailable", "fan", fan, "error", err)
		return nil
	}
	if count > limit {
		return &RateLimitError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// GetCheckout is the canonical read of a checkout. A PENDING checkout past its TTL is
// transitioned to EXPIRED and reported as ErrCheckoutExpired.
func (s *Service) GetCheckout(ctx context.Context, checkoutID string) (*domain.Checkout, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return nil, ErrCheckoutNotFound
	}

	checkout, err := s.repo.GetCheckoutByID(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, store.ErrCheckoutNotFound) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}

	now := s.now()
	if checkout.EffectiveStatus(now) == domain.CheckoutStatusExpired {
		if checkout.Status == domain.CheckoutStatusPending {
			if err := s.repo.ExpireCheckout(ctx, checkout.ID, now); err != nil {
				s.logger.Warn("failed to persist checkout expiry", "checkout_id", checkout.ID, "error", err)
			}
		}
		return nil, ErrCheckoutExpired
	}
	return checkout, nil
}

// GetPriceBreakdown returns the priced amounts of a live checkout.
func (s *Service) GetPriceBreakdown(ctx context.Context, checkoutID string) (*domain.PriceBreakdown, error) {
	checkout, err := s.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	return &domain.PriceBreakdown{
		CheckoutID:  checkout.ID,
		AssetCode:   checkout.AssetCode,
		AssetIssuer: checkout.AssetIssuer,
		Amount:      checkout.Amount,
		Fee:         checkout.Fee,
		FeeBps:      s.fees.FeeBps,
		Total:       checkout.Total,
		ExpiresAt:   checkout.ExpiresAt,
	}, nil
}

// GetTransactionPreview describes the payment the wallet will be asked to sign.
func (s *Service) GetTransactionPreview(ctx context.Context, checkoutID string) (*domain.TransactionPreview, error) {
	checkout, err := s.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	return &domain.TransactionPreview{
		CheckoutID:         checkout.ID,
		SourceAccount:      checkout.FanAddress,
		DestinationAccount: checkout.CreatorAddress,
		AssetCode:          checkout.AssetCode,
		AssetIssuer:        checkout.AssetIssuer,
		Amount:             checkout.Amount,
		PlatformFee:        checkout.Fee,
		Total:              checkout.Total,
		NetworkFee:         baseNetworkFee,
		Network:            s.opts.Network,
		Memo:               checkoutMemo(checkout.ID),
		ExpiresAt:          checkout.ExpiresAt,
	}, nil
}

func checkoutMemo(checkoutID string) string {
	id := strings.ReplaceAll(checkoutID, "-", "")
	if len(id) > memoIDLength {
		id = id[:memoIDLength]
	}
	return memoPrefix + id
}

// GetWalletStatus returns what the wallet adapter knows about an address.
func (s *Service) GetWalletStatus(ctx context.Context, address string) (*domain.WalletStatus, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, invalidRequest("wallet address is required")
	}
	return s.wallet.GetWallet(ctx, address)
}

// ValidateBalance checks the fan's balance against the checkout total. assetCode and amount
// override the checkout's asset and total when given.
func (s *Service) ValidateBalance(ctx context.Context, checkoutID, assetCode string, amount *domain.Amount) (*domain.BalanceValidation, error) {
	checkout, err := s.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	code := checkout.AssetCode
	issuer := checkout.AssetIssuer
	if override := strings.ToUpper(strings.TrimSpace(assetCode)); override != "" && override != code {
		code = override
		issuer = nil
	}

	required := checkout.Total
	if amount != nil {
		required = *amount
	}

	wallet, err := s.wallet.GetWallet(ctx, checkout.FanAddress)
	if err != nil {
		return nil, err
	}

	// A missing trustline is a zero balance.
	balance, _ := wallet.BalanceOf(code, issuer)

	result := &domain.BalanceValidation{
		Valid:     balance >= required,
		AssetCode: code,
		Balance:   balance,
		Required:  required,
	}
	if !result.Valid {
		shortfall := balance.Shortfall(required)
		result.Shortfall = &shortfall
	}
	return result, nil
}
