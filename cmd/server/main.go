package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/hammerstack/bidengine/internal/adapters/api"
	"github.com/hammerstack/bidengine/internal/adapters/cache"
	"github.com/hammerstack/bidengine/internal/adapters/database"
	"github.com/hammerstack/bidengine/internal/adapters/events"
	"github.com/hammerstack/bidengine/internal/config"
	"github.com/hammerstack/bidengine/internal/domain/auction"
	infradb "github.com/hammerstack/bidengine/internal/infra/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// 1. Postgres
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database config", "error", err)
		os.Exit(1)
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("postgres connected")

	// 2. RabbitMQ
	amqpConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	publisher, err := events.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	logger.Info("rabbitmq connected")

	// 3. Repositories
	txManager := infradb.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	catalog := database.NewPostgresItemCatalog(pool)
	registry := database.NewPostgresAutoBidRegistry(pool)

	var ledger auction.BidLedger = database.NewPostgresBidLedger(pool, txManager, outboxRepo)

	// 4. Optional redis cache in front of the ledger
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, leading-bid cache disabled", "error", err)
		} else {
			ledger = cache.NewCachedLedger(ledger, rdb, time.Minute, logger)
			logger.Info("redis connected")
		}
	}

	// 5. Domain service
	service := auction.NewService(catalog, ledger, registry, cfg.Engine, logger)

	// 6. Outbox relay
	relay := events.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		10,            // batch size
		1*time.Second, // interval
		events.DefaultExchange,
		logger,
	)
	go func() {
		logger.Info("starting outbox relay")
		if err := relay.Run(ctx); err != nil {
			logger.Error("outbox relay stopped", "error", err)
		}
	}()

	// 7. HTTP
	router := api.NewRouter(api.NewHandler(service))
	logger.Info("starting bid engine API", "addr", cfg.HTTPAddr)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
