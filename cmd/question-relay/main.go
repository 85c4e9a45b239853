package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/relay"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	godotenvErr := godotenv.Load()

	appConfig := config.LoadAppConfig()
	relayConfig := config.LoadRelayConfig()
	lg := log.New(appConfig.Env).With().Str("service", "question-relay").Logger()
	if godotenvErr != nil {
		lg.Warn().Msg("Could not load .env file")
	}

	app := fiber.New(fiber.Config{AppName: appConfig.Name + "-question-relay"})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !appConfig.IsProduction(),
	}))

	var queue relay.Queue
	if url := config.LoadRedisConfig().URL; url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			lg.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		queue = relay.NewRedisQueue(client, relayConfig.QueueTTL)
	} else {
		lg.Warn().Msg("REDIS_URL not set, question queues are kept in memory")
		queue = relay.NewMemoryQueue(relayConfig.QueueTTL)
	}

	forwarder := relay.NewForwarder(relayConfig.ForwardTimeout, lg)
	relay.NewHandler(queue, forwarder, relayConfig, lg).RegisterRoutes(app)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("relay shutdown")
		}
	}()

	lg.Info().Str("port", relayConfig.Port).Msg("Question relay running")
	if err := app.Listen(relayConfig.Port); err != nil {
		lg.Fatal().Err(err).Msg("relay stopped")
	}
}
