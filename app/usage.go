package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/access"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
)

type usageResponse struct {
	Date            string         `json:"date"`
	TotalOperations int            `json:"totalOperations"`
	OperationCounts map[string]int `json:"operationCounts"`
	DailyLimit      int            `json:"dailyLimit"`
	Remaining       int            `json:"remaining"`
	Unlimited       bool           `json:"unlimited"`
}

func (s *Server) usageSummary(userID string) usageResponse {
	snap := s.usage.Snapshot(userID)
	return usageResponse{
		Date:            snap.Date,
		TotalOperations: snap.TotalOperations,
		OperationCounts: snap.OperationCounts,
		DailyLimit:      s.usage.DailyLimit(),
		Remaining:       s.usage.GetRemainingOperations(userID),
		Unlimited:       s.subs.Tier(userID).IsPremium(),
	}
}

// GetUsage returns today's counters for the authenticated user.
func (s *Server) GetUsage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.usageSummary(userID))
}

// GetSubscription returns the resolved tier and its features. With
// ?refresh=true the cached subscription is dropped and fetched again.
func (s *Server) GetSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sub, cached := s.subs.Cached(userID)
	if !cached || isTruthy(c.Query("refresh")) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		s.subs.Invalidate(userID)
		sub = s.subs.FetchSubscription(ctx, userID)
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": sub,
		"tier":         sub.Tier,
		"tierName":     sub.Tier.DisplayName(),
		"isPremium":    sub.Tier.IsPremium(),
		"features":     plans.TierFeatures(sub.Tier).Features(),
	})
}

// GetFeatureAccess reports whether the user could use a feature right now
// without counting anything.
func (s *Server) GetFeatureAccess(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	f, ok := featureParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.access.CheckFeatureAccess(userID, f))
}

type operationResponse struct {
	access.Result
	Feature   plans.Feature `json:"feature"`
	Remaining int           `json:"remaining"`
}

// PerformOperation records one run of a feature. The response status tells
// the client whether to proceed (200), prompt an upgrade (403), show the
// daily limit (429) or retry (409).
func (s *Server) PerformOperation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	f, ok := featureParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	// pick up counts written by other instances or an admin reset
	if err := s.usage.LoadUsage(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user", userID).Msg("usage refresh failed; using cached counters")
	}
	res := s.access.PerformOperation(ctx, userID, f)
	c.JSON(accessStatus(res), operationResponse{
		Result:    res,
		Feature:   f,
		Remaining: s.usage.GetRemainingOperations(userID),
	})
}
