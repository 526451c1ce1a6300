package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/api/middleware"
	"github.com/maheshrc27/crosspost/internal/cache"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/storage"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	ctx := context.Background()
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to set up storage: %v", err)
	}

	hc := httpclient.New(
		httpclient.WithTimeout(cfg.HTTP.Timeout),
		httpclient.WithMaxAttempts(cfg.HTTP.MaxAttempts),
		httpclient.WithBackoff(cfg.HTTP.Backoff),
		httpclient.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
	)

	channelRepo := repository.NewChannelRepository(db)
	postRepo := repository.NewPostRepository(db)
	targetRepo := repository.NewPostTargetRepository(db)
	videoRepo := repository.NewVideoRepository(db)

	dispatcher := queue.NewDispatcher(client)

	credentialService := service.NewCredentialService(*cfg, hc, channelRepo)
	adapters := service.NewRegistry(
		service.NewFacebookService(*cfg, hc, credentialService),
		service.NewInstagramService(*cfg, hc, credentialService),
		service.NewTiktokService(*cfg, hc, credentialService, files),
		service.NewYoutubeService(*cfg, hc, credentialService, files),
	)
	publishService := service.NewPublishService(postRepo, targetRepo, channelRepo, videoRepo, adapters)
	postService := service.NewPostService(postRepo, channelRepo, videoRepo, dispatcher)
	videoService := service.NewVideoService(videoRepo, files)
	channelService := service.NewChannelService(*cfg, hc, channelRepo, cache.NewStateStore(rdb))

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    500 * 1024 * 1024, // 500 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	channel := handlers.NewChannelHandler(channelService, *cfg)
	app.Get("/auth/:platform", channel.AddChannel)
	app.Get("/auth/:platform/callback", channel.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, publishService)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/publish", post.PublishPost)
	api.Post("/targets/:id/publish", post.PublishTarget)

	video := handlers.NewVideoHandler(videoService)
	api.Post("/videos", video.UploadVideo)

	api.Get("/channels", channel.ListChannels)
	api.Delete("/channels/:id", channel.DeactivateChannel)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(channelRepo, credentialService, cfg.Jobs.RefreshWindow)
	dueTargetsJob := job.NewDueTargetsJob(targetRepo, dispatcher, cfg.Jobs.DueBatch)

	c := cron.New()
	if err := c.AddFunc(cfg.Jobs.RefreshSchedule, refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Invalid refresh schedule: %v", err)
	}
	if err := c.AddFunc(cfg.Jobs.DueSchedule, dueTargetsJob.EnqueueDue); err != nil {
		log.Fatalf("Invalid due schedule: %v", err)
	}
	c.Start()

	// queue
	worker := queue.NewQueue(publishService)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: cfg.Jobs.Concurrency,
	})
	go func() {
		mux := asynq.NewServeMux()
		worker.Register(mux)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, server, c, rdb, db)
}

func closeDB(db *sqlx.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, c *cron.Cron, rdb *redis.Client, db *sqlx.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	c.Stop()
	server.Shutdown()
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("Failed to close redis: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
