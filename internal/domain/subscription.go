package domain

import "time"

// SubscriptionStatus is the stored lifecycle state of a subscription.
// Entitlement is decided by Expiry alone, see IsActiveAt.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// ParseSubscriptionStatus validates a status filter value.
func ParseSubscriptionStatus(raw string) (SubscriptionStatus, bool) {
	switch s := SubscriptionStatus(raw); s {
	case SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusCancelled:
		return s, true
	}
	return "", false
}

// Subscription is the single entitlement record for a (fan, creator) pair.
type Subscription struct {
	ID             string             `json:"id"`
	FanAddress     string             `json:"fan_address"`
	CreatorAddress string             `json:"creator_address"`
	PlanID         string             `json:"plan_id"`
	Expiry         int64              `json:"expiry"`
	Status         SubscriptionStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// IsActiveAt reports whether the subscription grants access at now.
func (s Subscription) IsActiveAt(now time.Time) bool {
	return s.Expiry > now.Unix()
}

// EffectiveStatus is the status the subscription has at now.
func (s Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.Status == SubscriptionStatusActive && !s.IsActiveAt(now) {
		return SubscriptionStatusExpired
	}
	return s.Status
}

// SubscriptionPage is one page of a fan's subscriptions.
type SubscriptionPage struct {
	Items      []Subscription `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}
