package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/rs/zerolog/log"

	"github.com/theChefEngineer/ai-tool-app-sub001/app"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/config"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/logging"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.Init(logging.Config{Style: "json", Level: cfg.Logs.Level})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Schema is applied by the admin CLI; the container only connects.
	st, err := store.Open(ctx, cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}

	app.InitStripe(cfg.Stripe)
	router, err := app.NewRouter(app.NewServer(cfg, st, logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize router")
	}

	ginLambda = ginadapter.New(router)
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
