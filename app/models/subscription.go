package models

import "time"

// Stripe subscription statuses we care about.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// SubscriptionRecord is a billing subscription row mirrored from Stripe.
type SubscriptionRecord struct {
	SubscriptionID   string    `db:"subscription_id" json:"subscriptionId,omitempty"`
	CustomerID       string    `db:"customer_id" json:"customerId,omitempty"`
	PriceID          string    `db:"price_id" json:"priceId,omitempty"`
	Status           string    `db:"status" json:"status,omitempty"`
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"currentPeriodEnd,omitempty"`
	UpdatedAt        time.Time `db:"updated_at" json:"-"`
}

// IsActive reports whether the subscription currently grants its tier.
func (s SubscriptionRecord) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}
