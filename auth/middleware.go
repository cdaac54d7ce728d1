package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MiddlewareConfig controls auth enforcement behavior.
type MiddlewareConfig struct {
	// RequireRole rejects tokens whose role claim differs, e.g. "authenticated".
	RequireRole string
	PublicPaths map[string]bool
	DisableAuth bool
	Logger      zerolog.Logger
	// OnAuthenticated runs after the claims are stored on the request.
	OnAuthenticated func(c *gin.Context, claims *Claims)
}

// Middleware enforces bearer token auth and injects claims into the request context.
func Middleware(verifier *Verifier, cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.DisableAuth || AuthDisabled() {
			claims := &Claims{
				Subject: "local-dev",
				Email:   "local-dev@localhost",
				Issuer:  "local",
				Raw:     map[string]any{"sub": "local-dev"},
			}
			accept(c, claims, cfg)
			return
		}

		if cfg.PublicPaths != nil && cfg.PublicPaths[c.FullPath()] {
			c.Next()
			return
		}

		if verifier == nil {
			respondUnauthorized(c, "auth verifier not configured")
			return
		}

		logger := cfg.Logger.With().Str("path", c.Request.URL.Path).Logger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("auth failure: missing Authorization header")
			respondUnauthorized(c, "missing authorization header")
			return
		}

		token, ok := extractBearerToken(authHeader)
		if !ok {
			logger.Info().Msg("auth failure: malformed Authorization header")
			respondUnauthorized(c, "invalid authorization header")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logger.Info().Err(err).Msg("auth failure: token invalid")
			respondUnauthorized(c, FriendlyMessage(err))
			return
		}

		if cfg.RequireRole != "" && claims.Role != cfg.RequireRole {
			logger.Info().Str("role", claims.Role).Msg("auth failure: role not allowed")
			respondUnauthorized(c, "insufficient role")
			return
		}

		accept(c, claims, cfg)
	}
}

func accept(c *gin.Context, claims *Claims, cfg MiddlewareConfig) {
	ctx := WithClaims(c.Request.Context(), claims)
	c.Request = c.Request.WithContext(ctx)
	if cfg.OnAuthenticated != nil {
		cfg.OnAuthenticated(c, claims)
		if c.IsAborted() {
			return
		}
	}
	c.Next()
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
