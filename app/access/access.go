// Package access combines the subscription tier and the daily usage quota
// into a single allow/deny decision for a feature.
package access

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
)

// Denial reasons shown to the user.
const (
	ReasonLimitReached = "Daily limit reached. Upgrade to Pro for unlimited access."
	ReasonRetry        = "Unable to record usage. Please try again."
)

// Result is the outcome of an access check.
type Result struct {
	HasAccess       bool   `json:"hasAccess"`
	Reason          string `json:"reason,omitempty"`
	UpgradeRequired bool   `json:"upgradeRequired,omitempty"`
	LimitReached    bool   `json:"limitReached,omitempty"`
	RequiredTier    string `json:"requiredTier,omitempty"`
}

// Outcome is a short label for metrics and logs.
func (r Result) Outcome() string {
	switch {
	case r.HasAccess:
		return "allowed"
	case r.LimitReached:
		return "limit_reached"
	case r.UpgradeRequired:
		return "upgrade_required"
	default:
		return "denied"
	}
}

// TierSource exposes the caller's cached tier.
type TierSource interface {
	Tier(userID string) plans.Tier
	HasFeatureAccess(userID string, f plans.Feature) bool
}

// UsageGate is the daily quota.
type UsageGate interface {
	CanPerformOperation(userID string, op plans.Feature) bool
	IncrementUsage(ctx context.Context, userID string, op plans.Feature) bool
}

// Controller decides whether a user may use a feature. It holds no state of
// its own; every call reads the current store snapshots.
type Controller struct {
	tiers   TierSource
	usage   UsageGate
	metrics *Metrics
	log     zerolog.Logger
}

func NewController(tiers TierSource, usage UsageGate, metrics *Metrics, logger zerolog.Logger) *Controller {
	return &Controller{
		tiers:   tiers,
		usage:   usage,
		metrics: metrics,
		log:     logger,
	}
}

// CheckFeatureAccess is a snapshot check that never counts usage.
func (c *Controller) CheckFeatureAccess(userID string, f plans.Feature) Result {
	if !c.tiers.HasFeatureAccess(userID, f) {
		return Result{
			Reason:          fmt.Sprintf("This feature requires a %s subscription.", GetRequiredTier(f)),
			UpgradeRequired: true,
			RequiredTier:    GetRequiredTier(f),
		}
	}

	if c.tiers.Tier(userID) == plans.TierFree && plans.IsMetered(f) && !c.usage.CanPerformOperation(userID, f) {
		return Result{
			Reason:          ReasonLimitReached,
			UpgradeRequired: true,
			LimitReached:    true,
			RequiredTier:    plans.TierPro.DisplayName(),
		}
	}

	return Result{HasAccess: true}
}

// PerformOperation checks access and, for free users, counts the operation.
func (c *Controller) PerformOperation(ctx context.Context, userID string, f plans.Feature) Result {
	res := c.CheckFeatureAccess(userID, f)
	if res.HasAccess && c.tiers.Tier(userID) == plans.TierFree && plans.IsMetered(f) {
		if !c.usage.IncrementUsage(ctx, userID, f) {
			res = Result{Reason: ReasonRetry}
		}
	}

	c.metrics.observe(f, res)
	if !res.HasAccess {
		c.log.Info().Str("user", userID).Str("feature", f.String()).
			Str("outcome", res.Outcome()).Msg("operation denied")
	}
	return res
}

// GetRequiredTier names the tier to advertise in upgrade prompts.
func GetRequiredTier(f plans.Feature) string {
	return plans.RequiredTier(f).DisplayName()
}
