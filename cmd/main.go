package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/application"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/config"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/ingress"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/kafka"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/migrate"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/presentation"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/ratelimit"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/repository"
)

func main() {
	logger.Init()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}

	// DB pool
	pool, err := pgxpool.New(context.Background(), cfg.DB_STRING)
	if err != nil {
		logger.Warn("pgxpool new failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Warn("db ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	if err := migrate.Up(cfg.DB_STRING); err != nil {
		logger.Warn("migrations failed", "err", err)
		os.Exit(1)
	}

	// Wiring
	orderRepo := repository.NewOrderRepository(pool)
	stockRepo := repository.NewStockRepository(pool)
	reconciler := application.NewInventoryReconciler(orderRepo, stockRepo)

	// Kafka producer for paid-order events, optional
	var publisher application.Publisher
	if cfg.KAFKA_BROKERS != "" && cfg.KAFKA_TOPIC != "" {
		prod := kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_TOPIC)
		defer prod.Close()
		publisher = prod
		logger.Info("kafka producer ready", "brokers", cfg.KAFKA_BROKERS, "topic", cfg.KAFKA_TOPIC)
	}

	svc := application.NewPaymentsService(orderRepo, reconciler, publisher)
	ing := ingress.New(cfg.WEBHOOK_SECRET, cfg.APP_ENV)

	// Redis-backed webhook rate limit, optional
	var limit func(http.Handler) http.Handler
	if cfg.REDIS_ADDR != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.REDIS_ADDR})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis ping failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limit = ratelimit.New(rdb, 120, time.Minute).Middleware
		logger.Info("redis connected", "addr", cfg.REDIS_ADDR)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := presentation.NewPaymentsHandler(svc, ing, limit)
	h.Register(r)

	addr := ":" + cfg.HTTP_PORT
	logger.Info("starting http", "addr", addr, "env", cfg.APP_ENV)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Warn("http server crashed", "err", err)
		os.Exit(1)
	}
}
