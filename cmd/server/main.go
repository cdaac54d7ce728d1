package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/theChefEngineer/ai-tool-app-sub001/app"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/config"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/logging"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.Init(logging.Config{Style: cfg.Logs.Style, Level: cfg.Logs.Level})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(ctx, cfg.DB)
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("failed to open database")
	}
	if err := st.Migrate(ctx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	defer st.Close()
	logger.Info().Str("driver", st.Driver()).Msg("connected to database")

	app.InitStripe(cfg.Stripe)
	router, err := app.NewRouter(app.NewServer(cfg, st, logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize router")
	}

	logger.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
	if err := router.Run(cfg.HTTP.Addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
