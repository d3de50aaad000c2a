/**
 * @description
 * Checkout sessions: short-lived, single-use records of one attempted subscription purchase.
 * A checkout is created PENDING and is resolved exactly once into one of the terminal states.
 */
package domain

import "time"

// CheckoutStatus is the state of a checkout session.
type CheckoutStatus string

const (
	CheckoutStatusPending   CheckoutStatus = "pending"
	CheckoutStatusCompleted CheckoutStatus = "completed"
	CheckoutStatusFailed    CheckoutStatus = "failed"
	CheckoutStatusRejected  CheckoutStatus = "rejected"
	CheckoutStatusExpired   CheckoutStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s CheckoutStatus) IsTerminal() bool {
	return s != CheckoutStatusPending
}

// Checkout represents one checkout session row.
type Checkout struct {
	ID             string         `json:"id"`
	FanAddress     string         `json:"fan_address"`
	CreatorAddress string         `json:"creator_address"`
	PlanID         string         `json:"plan_id"`
	AssetCode      string         `json:"asset_code"`
	AssetIssuer    *string        `json:"asset_issuer,omitempty"`
	Amount         Amount         `json:"amount"`
	Fee            Amount         `json:"fee"`
	Total          Amount         `json:"total"`
	Status         CheckoutStatus `json:"status"`
	ExpiresAt      time.Time      `json:"expires_at"`
	TxHash         *string        `json:"tx_hash,omitempty"`
	Error          *string        `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// EffectiveStatus is the status the checkout has at now. A pending checkout whose TTL has
// elapsed is expired even if the stored row has not been transitioned yet.
func (c Checkout) EffectiveStatus(now time.Time) CheckoutStatus {
	if c.Status == CheckoutStatusPending && now.After(c.ExpiresAt) {
		return CheckoutStatusExpired
	}
	return c.Status
}

// PriceBreakdown itemises what the fan pays for a checkout.
type PriceBreakdown struct {
	CheckoutID  string    `json:"checkout_id"`
	AssetCode   string    `json:"asset_code"`
	AssetIssuer *string   `json:"asset_issuer,omitempty"`
	Amount      Amount    `json:"amount"`
	Fee         Amount    `json:"fee"`
	FeeBps      int64     `json:"fee_bps"`
	Total       Amount    `json:"total"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TransactionPreview describes the payment the wallet is about to sign.
type TransactionPreview struct {
	CheckoutID         string    `json:"checkout_id"`
	SourceAccount      string    `json:"source_account"`
	DestinationAccount string    `json:"destination_account"`
	AssetCode          string    `json:"asset_code"`
	AssetIssuer        *string   `json:"asset_issuer,omitempty"`
	Amount             Amount    `json:"amount"`
	PlatformFee        Amount    `json:"platform_fee"`
	Total              Amount    `json:"total"`
	NetworkFee         Amount    `json:"network_fee"`
	Network            string    `json:"network"`
	Memo               string    `json:"memo"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// CheckoutResolution is returned by confirm and fail calls.
type CheckoutResolution struct {
	Success      bool           `json:"success"`
	CheckoutID   string         `json:"checkout_id"`
	Status       CheckoutStatus `json:"status"`
	TxHash       string         `json:"tx_hash,omitempty"`
	ExplorerURL  string         `json:"explorer_url,omitempty"`
	Error        string         `json:"error,omitempty"`
	Message      string         `json:"message"`
	Subscription *Subscription  `json:"subscription,omitempty"`
}
