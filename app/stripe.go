package app

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/config"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

// InitStripe sets the Stripe API key.
func InitStripe(cfg config.StripeConfig) {
	stripe.Key = cfg.SecretKey
}

// newStripeCustomer is swapped in tests.
var newStripeCustomer = customer.New

// ensureStripeCustomer finds or creates the Stripe customer for a user. A new
// customer carries metadata user_id = <userID> and is recorded in
// billing_customers.
func (s *Server) ensureStripeCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("missing user id")
	}

	customerID, err := s.store.GetCustomerID(ctx, userID)
	if err == nil && customerID != "" {
		return customerID, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"user_id": userID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	cust, err := newStripeCustomer(params)
	if err != nil {
		return "", err
	}

	if err := s.store.UpsertCustomer(ctx, userID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}
