package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
	"github.com/theChefEngineer/ai-tool-app-sub001/auth"
)

type checkoutRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
}

// priceFor picks the configured price for a paid tier and billing interval.
func (s *Server) priceFor(tier plans.Tier, interval string) string {
	yearly := strings.EqualFold(interval, "yearly") || strings.EqualFold(interval, "annual")
	switch {
	case tier == plans.TierEnterprise && yearly:
		return s.cfg.Stripe.PriceIDEnterpriseYearly
	case tier == plans.TierEnterprise:
		return s.cfg.Stripe.PriceIDEnterpriseMonthly
	case yearly:
		return s.cfg.Stripe.PriceIDProYearly
	default:
		return s.cfg.Stripe.PriceIDProMonthly
	}
}

// CreateCheckoutSession starts a Stripe Checkout Session for the authenticated user.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req checkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	tier := plans.TierPro
	if req.Plan != "" {
		t, err := plans.ParseTier(req.Plan)
		if err != nil || !t.IsPremium() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan"})
			return
		}
		tier = t
	}

	priceID := s.priceFor(tier, req.Interval)
	frontendURL := strings.TrimRight(s.cfg.Stripe.FrontendURL, "/")
	if priceID == "" || frontendURL == "" {
		s.log.Error().Bool("price_id", priceID != "").Bool("frontend_url", frontendURL != "").
			Msg("missing Stripe config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()
	stripeCustomerID, err := s.ensureStripeCustomer(ctx, claims.Subject, claims.Email)
	if err != nil {
		s.log.Error().Err(err).Str("user", claims.Subject).Msg("ensureStripeCustomer failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(stripeCustomerID),
		ClientReferenceID: stripe.String(claims.Subject),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}
	params.AddMetadata("user_id", claims.Subject)
	params.AddMetadata("tier", string(tier))

	sess, err := session.New(params)
	if err != nil {
		s.log.Error().Err(err).Str("user", claims.Subject).Msg("stripe checkout session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL, "sessionId": sess.ID})
}

// CreatePortalSession creates a Stripe Customer Portal session for the authenticated user.
func (s *Server) CreatePortalSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	customerID, err := s.store.GetCustomerID(c.Request.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stripe customer missing for user"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("portal lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load customer"})
		return
	}

	frontendURL := strings.TrimRight(s.cfg.Stripe.FrontendURL, "/")
	if frontendURL == "" {
		s.log.Error().Msg("missing Stripe config: frontend_url")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}

	sess, err := portal.New(params)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("stripe portal session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

// StripeWebhook keeps the customer and subscription mirror in step with
// Stripe and drops the affected user's cached subscription.
func (s *Server) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		s.log.Warn().Err(err).Msg("stripe webhook read failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	endpointSecret := s.cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		s.log.Error().Msg("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		s.log.Warn().Err(err).Msg("stripe webhook signature failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	ctx := c.Request.Context()
	logger := s.log.With().Str("event", string(event.Type)).Str("event_id", event.ID).Logger()

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			logger.Warn().Err(err).Msg("stripe session unmarshal failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session payload"})
			return
		}
		customerID := ""
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		userID := sess.ClientReferenceID
		if customerID == "" || userID == "" {
			logger.Warn().Bool("customer", customerID != "").Bool("client_reference_id", userID != "").
				Msg("stripe session missing customer or user")
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing customer id"})
			return
		}
		if err := s.store.UpsertCustomer(ctx, userID, customerID); err != nil {
			logger.Error().Err(err).Str("customer", customerID).Msg("customer mapping failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
			return
		}
		s.subs.Invalidate(userID)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			logger.Warn().Err(err).Msg("stripe subscription unmarshal failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription payload"})
			return
		}
		rec := subscriptionRecord(&sub)
		if rec.CustomerID == "" {
			logger.Warn().Msg("stripe subscription missing customer id")
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing customer id"})
			return
		}
		if event.Type == "customer.subscription.deleted" {
			rec.Status = models.SubscriptionStatusCanceled
		}
		if err := s.store.UpsertSubscription(ctx, rec); err != nil {
			logger.Error().Err(err).Str("customer", rec.CustomerID).Msg("subscription mirror failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscription"})
			return
		}
		if userID, err := s.store.UserIDForCustomer(ctx, rec.CustomerID); err == nil {
			s.subs.Invalidate(userID)
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Error().Err(err).Str("customer", rec.CustomerID).Msg("customer lookup failed")
		}
		logger.Info().Str("customer", rec.CustomerID).Str("status", rec.Status).Msg("subscription mirrored")

	default:
		// Other events are acknowledged and ignored.
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func subscriptionRecord(sub *stripe.Subscription) models.SubscriptionRecord {
	rec := models.SubscriptionRecord{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
		UpdatedAt:      time.Now(),
	}
	if sub.Customer != nil {
		rec.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		rec.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0)
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil && item.Price.ID != "" {
				rec.PriceID = item.Price.ID
				break
			}
		}
	}
	return rec
}
