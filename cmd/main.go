/**
 * @description
 * This is the main entry point for the billing-service.
 * It initializes and wires together all the components of the application:
 * configuration, database pool, repository, external clients (payment
 * gateway, model API, Redis, RabbitMQ), the background workers, and the HTTP
 * router. Finally, it starts the HTTP server and blocks until shutdown.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nanobanana/billing-service/internal/api"
	"github.com/nanobanana/billing-service/internal/app"
	"github.com/nanobanana/billing-service/internal/config"
	"github.com/nanobanana/billing-service/internal/store"
	"github.com/nanobanana/billing-service/pkg/creem"
	"github.com/nanobanana/billing-service/pkg/modelclient"
	"github.com/nanobanana/billing-service/pkg/rabbitmq"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env for local development; in production the environment is set
	// by the platform.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, reading config from environment")
	}

	// Load application configuration from environment variables
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up channel to listen for OS signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to the PostgreSQL database with connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// IMPORTANT: Disable prepared statements to work with PgBouncer transaction pooling
	// Use simple protocol to avoid statement cache errors (SQLSTATE 42P05)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// External clients.
	creemClient := creem.NewClient(cfg.CreemAPIURL, cfg.CreemAPIKey)
	modelClient := modelclient.NewClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey)

	// Redis is optional; without it the generate endpoint is not throttled.
	var rateLimiter *app.RedisRateLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		rateLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
		logger.Info("redis rate limiter enabled", "prefix", cfg.RedisRateLimitPrefix)
	}

	// RabbitMQ is optional; without it billing events are simply not
	// published.
	var producer app.EventPublisher
	if cfg.RabbitMQURL != "" {
		eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.BillingEventExchange)
		if err != nil {
			logger.Error("unable to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer eventProducer.Close()
		producer = eventProducer
		logger.Info("billing event producer connected", "exchange", cfg.BillingEventExchange)
	}

	// Initialize application layers
	repository := store.NewPostgresRepository(dbpool)
	service := app.NewService(repository, modelClient, creemClient, producer, cfg)
	handlers := api.NewHandlers(service, rateLimiter, cfg)
	router := api.BillingRoutes(handlers, cfg.JWTSecret)

	// Start the checkout-mapping purge scheduler.
	jobs := app.NewJobs(repository, logger, cfg)
	scheduler := app.NewScheduler(jobs, logger, cfg)
	scheduler.Start()
	defer scheduler.Stop()

	// Start the refund outbox dispatcher.
	dispatcher := app.NewRefundOutboxDispatcher(
		repository,
		cfg.RefundOutboxBatchSize,
		time.Duration(cfg.RefundOutboxPollSeconds)*time.Second,
	)
	go dispatcher.Run(ctx)

	// Configure and start the HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for an OS signal
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")
	cancel()

	// Create a context with a timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Attempt to gracefully shut down the server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
