package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/logging"
	"github.com/theChefEngineer/ai-tool-app-sub001/auth"
)

// NewRouter builds the shared HTTP router for both local and Lambda execution.
func NewRouter(s *Server) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(logging.Component(s.log, "http")))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", logging.RequestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	router.POST("/api/stripe/webhook", s.StripeWebhook)

	verifier, err := auth.NewVerifier(auth.Options{
		Issuer:   s.cfg.Auth.Issuer,
		Audience: s.cfg.Auth.Audience,
		JWKSURL:  s.cfg.Auth.JWKSURL,
		Secret:   s.cfg.Auth.JWTSecret,
	})
	if err != nil && !auth.AuthDisabled() {
		return nil, err
	}

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		Logger:          logging.Component(s.log, "auth"),
		OnAuthenticated: s.startSession,
	}))
	protected.GET("/me", s.Me)
	protected.GET("/api/usage", s.GetUsage)
	protected.GET("/api/subscription", s.GetSubscription)
	protected.GET("/api/features/:feature", s.GetFeatureAccess)
	protected.POST("/api/operations/:feature", s.PerformOperation)
	protected.GET("/api/history", s.GetHistoryFeed)
	protected.POST("/api/history/:type", s.RecordHistory)
	protected.GET("/api/history/:type", s.ListHistory)
	protected.GET("/api/history/:type/:id/export", s.ExportHistory)
	protected.POST("/api/billing/create-checkout-session", s.CreateCheckoutSession)
	protected.POST("/api/billing/portal-session", s.CreatePortalSession)

	return router, nil
}
