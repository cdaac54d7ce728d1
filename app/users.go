package app

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/auth"
)

// UpsertUserFromClaims creates the user row on first login and refreshes it after.
func (s *Server) UpsertUserFromClaims(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.Subject == "" {
		return nil
	}
	return s.store.UpsertUser(ctx, models.User{
		ID:    claims.Subject,
		Email: strings.TrimSpace(claims.Email),
		Name:  strings.TrimSpace(claims.Name),
	})
}

// startSession runs once per authenticated request. It records the user,
// resolves the subscription when the cached one is missing or expired and
// refreshes today's usage. Failures are logged; the request continues on the free tier
// with whatever usage is cached.
func (s *Server) startSession(c *gin.Context, claims *auth.Claims) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.UpsertUserFromClaims(ctx, claims); err != nil {
		s.log.Error().Err(err).Str("user", claims.Subject).Msg("user upsert failed")
	}
	if _, ok := s.subs.Cached(claims.Subject); !ok {
		s.subs.FetchSubscription(ctx, claims.Subject)
	}
	if err := s.usage.EnsureLoaded(ctx, claims.Subject); err != nil {
		s.log.Warn().Err(err).Str("user", claims.Subject).Msg("usage load failed; using cached counters")
	}
}
