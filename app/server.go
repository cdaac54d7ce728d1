// Package app wires the stores, access control and HTTP routes shared by the
// local server and the Lambda entrypoint.
package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/access"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/config"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/logging"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/subscription"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/usage"
)

// Server holds everything a request handler needs.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	usage    *usage.Store
	subs     *subscription.Store
	access   *access.Controller
	prices   plans.PriceTable
	registry *prometheus.Registry
	log      zerolog.Logger
}

// NewServer builds the per-process stores on top of st.
func NewServer(cfg *config.Config, st *store.Store, logger zerolog.Logger) *Server {
	prices := PriceTableFromConfig(cfg.Stripe)
	registry := prometheus.NewRegistry()

	subs := subscription.New(st, prices, logging.Component(logger, "subscription"),
		subscription.WithCacheTTL(cfg.Usage.SubscriptionTTL),
	)
	usageStore := usage.New(st, subs, cfg.Usage.DailyLimit,
		usage.WithLocation(cfg.Usage.Location),
		usage.WithOperationLimits(cfg.Usage.OperationLimits),
		usage.WithRefreshInterval(cfg.Usage.RefreshInterval),
		usage.WithLogger(logging.Component(logger, "usage")),
	)

	return &Server{
		cfg:      cfg,
		store:    st,
		usage:    usageStore,
		subs:     subs,
		access:   access.NewController(subs, usageStore, access.NewMetrics(registry), logging.Component(logger, "access")),
		prices:   prices,
		registry: registry,
		log:      logger,
	}
}

// PriceTableFromConfig maps the configured Stripe price ids to tiers.
func PriceTableFromConfig(c config.StripeConfig) plans.PriceTable {
	return plans.NewPriceTable(map[string]plans.Tier{
		c.PriceIDProMonthly:        plans.TierPro,
		c.PriceIDProYearly:         plans.TierPro,
		c.PriceIDEnterpriseMonthly: plans.TierEnterprise,
		c.PriceIDEnterpriseYearly:  plans.TierEnterprise,
	})
}

// Usage exposes the usage store for the admin tooling.
func (s *Server) Usage() *usage.Store { return s.usage }

// Subscriptions exposes the subscription store for the admin tooling.
func (s *Server) Subscriptions() *subscription.Store { return s.subs }
