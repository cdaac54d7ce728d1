package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

// Health is a public health check endpoint. A failed database ping is
// reported in the body; the status stays 200.
func (s *Server) Health(c *gin.Context) {
	db := "ok"
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.log.Warn().Err(err).Msg("health: database ping failed")
		db = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": db,
	})
}

// Me returns the profile, tier and today's usage for the authenticated user.
func (s *Server) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error().Err(err).Str("user", userID).Msg("load user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		user = models.User{ID: userID}
	}

	tier := s.subs.Tier(userID)
	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"tier":      tier,
		"tierName":  tier.DisplayName(),
		"usage":     s.usageSummary(userID),
		"isPremium": tier.IsPremium(),
	})
}
