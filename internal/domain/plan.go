package domain

import "time"

const secondsPerDay = 86400

// Plan is a creator's subscription catalog entry. Plans are never mutated by the checkout flow.
type Plan struct {
	ID             string    `json:"id"`
	CreatorAddress string    `json:"creator_address"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	AssetCode      string    `json:"asset_code"`
	AssetIssuer    *string   `json:"asset_issuer,omitempty"`
	Amount         Amount    `json:"amount"`
	IntervalDays   int       `json:"interval_days"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExpiryFrom returns the subscription expiry, in epoch seconds, for a period starting at now.
func (p Plan) ExpiryFrom(now time.Time) int64 {
	return now.Unix() + int64(p.IntervalDays)*secondsPerDay
}

// PlanSummary is the priced view of a plan shown before a checkout is opened.
type PlanSummary struct {
	PlanID         string  `json:"plan_id"`
	CreatorAddress string  `json:"creator_address"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	AssetCode      string  `json:"asset_code"`
	AssetIssuer    *string `json:"asset_issuer,omitempty"`
	Amount         Amount  `json:"amount"`
	Fee            Amount  `json:"fee"`
	FeeBps         int64   `json:"fee_bps"`
	Total          Amount  `json:"total"`
	IntervalDays   int     `json:"interval_days"`
}
