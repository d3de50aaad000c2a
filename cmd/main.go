/**
 * @description
 * This is the main entry point for the subscription-service.
 * It initializes and wires together all the components of the application,
 * including configuration, the checkout store, the rate limiter, the event producer,
 * the retention scheduler, and the HTTP router. Finally, it starts the HTTP server.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Backing store for the checkout rate limiter.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - pkg/rabbitmq: Publishes checkout and subscription events.
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

	"github.com/myfans/subscription-service/internal/api"
	"github.com/myfans/subscription-service/internal/app"
	"github.com/myfans/subscription-service/internal/config"
	"github.com/myfans/subscription-service/internal/domain"
	"github.com/myfans/subscription-service/internal/store"
	"github.com/myfans/subscription-service/pkg/rabbitmq"
	"github.com/myfans/subscription-service/pkg/stellarwallet"
)

// demoPlan is served by the in-memory store so a local run has something to check out.
var demoPlan = domain.Plan{
	ID:             "1",
	CreatorAddress: "GCREATORDEMOADDRESS",
	Name:           "Monthly supporter",
	Description:    "Access to all posts for 30 days",
	AssetCode:      "XLM",
	Amount:         domain.MustParseAmount("10"),
	IntervalDays:   30,
	Active:         true,
}

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWKSURL == "" {
		logger.Error("wallet auth is not configured", "env", "JWKS_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repository app.Repository
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store seeded with a demo plan", "plan_id", demoPlan.ID)
		repository = store.NewMemoryRepository(demoPlan)
	} else {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			logger.Error("unable to parse database URL", "error", err)
			os.Exit(1)
		}

		poolConfig.MaxConns = 50
		poolConfig.MinConns = 5
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute

		// Simple protocol keeps PgBouncer transaction pooling working (SQLSTATE 42P05).
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			logger.Error("unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		logger.Info("database connection established")

		repository = store.NewPostgresRepository(dbpool)
	}

	var limiter app.RateLimiter
	if cfg.CheckoutRateLimitPerMinute > 0 {
		if cfg.RedisURL == "" {
			logger.Warn("redis url missing; checkout rate limiting disabled", "env", "REDIS_URL")
		} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
			logger.Warn("redis url parse failed; checkout rate limiting disabled", "error", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				logger.Warn("redis ping failed; checkout rate limiting disabled", "error", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				logger.Info("redis connected")
				limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
			}
		}
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
			logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
		} else {
			publisher = producer
			logger.Info("rabbitmq producer connected")
		}
	}
	defer publisher.Close()

	service := app.NewService(repository, stellarwallet.NewMockAdapter(), publisher, limiter, logger, app.Options{
		FeeBps:                     cfg.PlatformFeeBps,
		CheckoutTTL:                cfg.CheckoutTTL(),
		Network:                    cfg.StellarNetwork,
		ExplorerBaseURL:            cfg.ExplorerBaseURL,
		EventsExchange:             cfg.EventsExchange,
		CheckoutRateLimitPerMinute: cfg.CheckoutRateLimitPerMinute,
	})

	jobs := app.NewJobs(repository, cfg.CheckoutRetention(), logger)
	scheduler := app.NewScheduler(jobs, logger, cfg.CheckoutRetentionSchedule)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	keySource := api.NewJWKSKeySource(cfg.JWKSURL)
	handler := api.NewHandler(service)
	router := api.NewRouter(handler, api.WalletAuthMiddleware(keySource.Keyfunc, cfg.WalletAuthAudience), cfg.InternalAPIKey)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort, "network", cfg.StellarNetwork, "fee_bps", cfg.PlatformFeeBps)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	<-scheduler.Stop().Done()
	logger.Info("server stopped")
}
