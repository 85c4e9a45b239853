package main

import (
	"context"
	"errors"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/authcache"
	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/domain/fiber/handler"
	"github.com/fadilmartias/questy/internal/gate"
	"github.com/fadilmartias/questy/internal/interview"
	"github.com/fadilmartias/questy/internal/job"
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/internal/middleware"
	"github.com/fadilmartias/questy/internal/model"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/repository"
	"github.com/fadilmartias/questy/internal/service"
	"github.com/fadilmartias/questy/internal/usecase"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load .env file
	godotenvErr := godotenv.Load()

	appConfig := config.LoadAppConfig()
	lg := log.New(appConfig.Env)
	if godotenvErr != nil {
		lg.Warn().Msg("Could not load .env file")
	}

	interviewConfig := config.LoadInterviewConfig()
	matchingConfig := config.LoadMatchingConfig()
	jobConfig := config.LoadJobConfig()

	app := fiber.New(fiber.Config{
		AppName:   appConfig.Name,
		BodyLimit: int(interviewConfig.MaxCVSize) + 1<<20,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			// Status code defaults to 500
			code := fiber.StatusInternalServerError

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if ae, ok := apperr.As(err); ok {
				code = ae.HTTPStatus()
			}

			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}

			return ctx.Status(code).JSON(fiber.Map{"success": false, "message": message})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderDeviceID,
		ExposeHeaders: middleware.HeaderDeviceID,
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !appConfig.IsProduction(),
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // 1
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.IsProduction()
		},
	}))
	app.Use(healthcheck.New())

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.RateLimiter(300, 1*time.Minute))

	db := ConnectDB(lg)
	app.Use(middleware.Device(deviceProvider(lg)))

	student := realm.NewClient(config.LoadStudentRealmConfig(), lg)
	recruiter := realm.NewClient(config.LoadRecruiterRealmConfig(), lg)
	clients := []*realm.Client{student, recruiter}
	detach := authcache.NewProjector(lg).Attach(clients...)
	defer detach()
	sessionGate := gate.New(clients, config.LoadGateConfig(), lg)

	profileRepo := repository.NewProfileRepository(db)
	cvRepo := repository.NewStudentCVRepository(db)
	summaryRepo := repository.NewStudentSummaryRepository(db)
	hrNeedRepo := repository.NewHRNeedRepository(db)
	orphanRepo := repository.NewOrphanedIdentityRepository(db)

	authOpts := usecase.DefaultAuthOptions()
	authOpts.DemoFallback = appConfig.DemoFallback
	authUC := usecase.NewAuthUsecase(clients, profileRepo, orphanRepo, authOpts, lg)

	workflow := service.NewInterviewWorkflowService(interviewConfig, lg)
	registry := interview.NewRegistry(workflow,
		interview.Options{
			MaxQuestions:        interviewConfig.MaxQuestions,
			EnforceMaxQuestions: interviewConfig.EnforceMaxQuestions,
		},
		interview.PollerOptions{
			Interval:    interviewConfig.PollInterval,
			BackoffBase: interviewConfig.BackoffBase,
			BackoffMax:  interviewConfig.BackoffMax,
			MaxWait:     interviewConfig.MaxPollWait,
		}, lg)
	cvStorage := service.NewStorageService(interviewConfig.StorageURL, interviewConfig.StorageBucket, config.LoadStudentRealmConfig().AnonKey, lg)
	interviewUC := usecase.NewInterviewUsecase(registry, summaryRepo, cvRepo, cvStorage, interviewConfig.MaxCVSize, lg)

	matching := service.NewMatchingService(matchingConfig, lg)
	cvLinks := service.NewStorageService(matchingConfig.StorageURL, matchingConfig.StorageBucket, config.LoadStudentRealmConfig().AnonKey, lg)
	matchingUC := usecase.NewMatchingUsecase(matching, hrNeedRepo, cvRepo, summaryRepo, cvLinks,
		usecase.MatchingOptions{
			UnlockTopN:    matchingConfig.UnlockTopN,
			LookupTimeout: matchingConfig.LookupTimeout,
		}, lg)

	handler.NewLegacyHandler(authUC, sessionGate).RegisterRoutes(app)
	handler.NewAuthHandler(authUC, sessionGate).RegisterRoutes(app)
	handler.NewInterviewHandler(interviewUC, sessionGate).RegisterRoutes(app)
	handler.NewMatchingHandler(matchingUC, sessionGate).RegisterRoutes(app)

	orphanJob := job.NewOrphanJob(orphanRepo, authUC, jobConfig.OrphanBatchSize, lg)
	if err := orphanJob.Start(jobConfig.OrphanCleanupSpec); err != nil {
		lg.Fatal().Err(err).Msg("could not schedule orphan cleanup")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Monitor goroutine count
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				lg.Debug().Int("goroutines", runtime.NumGoroutine()).Msg("runtime stats")
			}
		}
	}()

	go func() {
		<-ctx.Done()
		lg.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("server shutdown")
		}
	}()

	lg.Info().Str("port", appConfig.Port).Msg("Server running")
	if err := app.Listen(appConfig.Port); err != nil {
		lg.Fatal().Err(err).Msg("server stopped")
	}

	registry.Close()
	orphanJob.Stop()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// deviceProvider picks Redis when REDIS_URL is set, memory otherwise.
func deviceProvider(lg log.Logger) localstore.Provider {
	cfg := config.LoadRedisConfig()
	if cfg.URL == "" {
		lg.Warn().Msg("REDIS_URL not set, device stores are kept in memory")
		return localstore.NewMemoryProvider(cfg.DeviceTTL)
	}
	client := ConnectRedis(lg, cfg.URL)
	return localstore.NewRedisProvider(client, cfg.DeviceTTL)
}

func ConnectRedis(lg log.Logger, url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		lg.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		lg.Fatal().Err(err).Msg("could not connect to redis")
	}
	return client
}

func ConnectDB(lg log.Logger) *gorm.DB {
	dbConfig := config.LoadDBConfig()
	appConfig := config.LoadAppConfig()

	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{})
	if err != nil {
		lg.Fatal().Err(err).Msg("Could not connect to database")
	}
	pgDB, err := db.DB()
	if err != nil {
		lg.Fatal().Err(err).Msg("Could not get database instance")
	}
	if !appConfig.IsProduction() {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(200)
		pgDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		lg.Fatal().Err(err).Msg("migration failed")
	}
	return db
}
