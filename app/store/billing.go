package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
)

// GetCustomerID returns the billing customer mapped to a user.
func (s *Store) GetCustomerID(ctx context.Context, userID string) (string, error) {
	var customerID string
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id
		FROM billing_customers
		WHERE user_id = $1;
	`, userID).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get customer: %w", err)
	}
	return customerID, nil
}

// UserIDForCustomer is the reverse lookup used by webhooks.
func (s *Store) UserIDForCustomer(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM billing_customers
		WHERE customer_id = $1;
	`, customerID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get customer user: %w", err)
	}
	return userID, nil
}

// UpsertCustomer maps a user to a billing customer.
func (s *Store) UpsertCustomer(ctx context.Context, userID, customerID string) error {
	if userID == "" || customerID == "" {
		return errors.New("missing user or customer id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_customers (user_id, customer_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET customer_id = excluded.customer_id;
	`, userID, customerID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// LatestSubscription returns the customer's subscription, preferring an
// active one and then the most recently updated.
func (s *Store) LatestSubscription(ctx context.Context, customerID string) (models.SubscriptionRecord, error) {
	var (
		rec       models.SubscriptionRecord
		periodEnd int64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT subscription_id, customer_id, price_id, status, current_period_end, updated_at
		FROM billing_subscriptions
		WHERE customer_id = $1
		ORDER BY CASE WHEN status = $2 THEN 0 ELSE 1 END, updated_at DESC
		LIMIT 1;
	`, customerID, models.SubscriptionStatusActive).Scan(
		&rec.SubscriptionID,
		&rec.CustomerID,
		&rec.PriceID,
		&rec.Status,
		&periodEnd,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SubscriptionRecord{}, ErrNotFound
	}
	if err != nil {
		return models.SubscriptionRecord{}, fmt.Errorf("get subscription: %w", err)
	}
	rec.CurrentPeriodEnd = fromMillis(periodEnd)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// UpsertSubscription mirrors a Stripe subscription row.
func (s *Store) UpsertSubscription(ctx context.Context, rec models.SubscriptionRecord) error {
	if rec.SubscriptionID == "" || rec.CustomerID == "" {
		return errors.New("missing subscription or customer id")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_subscriptions (subscription_id, customer_id, price_id, status, current_period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subscription_id) DO UPDATE
		SET customer_id = excluded.customer_id,
			price_id = excluded.price_id,
			status = excluded.status,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at;
	`,
		rec.SubscriptionID,
		rec.CustomerID,
		rec.PriceID,
		rec.Status,
		toMillis(rec.CurrentPeriodEnd),
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}
