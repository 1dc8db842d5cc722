package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"drinkpos/backend/internal/cache"
	"drinkpos/backend/internal/config"
	"drinkpos/backend/internal/events"
	"drinkpos/backend/internal/httpapi"
	"drinkpos/backend/internal/inventory"
	"drinkpos/backend/internal/service"
	"drinkpos/backend/internal/store"
	"drinkpos/backend/internal/store/memory"
	pgstore "drinkpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.AppEnv)
	defer func() { _ = logger.Sync() }()

	policy, location, err := validateSecurityConfig(cfg)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("apply schema", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository ready", zap.String("backend", "postgres"))
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository ready", zap.String("backend", "memory"))
	}

	promoCache := cache.PromotionCache(cache.NoopPromotionCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisPromotionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			promoCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache ready", zap.String("backend", "redis"))
		}
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if len(cfg.KafkaBrokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 256, logger)
		kafka.Start()
		publisher = kafka
		closers = append(closers, kafka.Close)
		logger.Info("events ready", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	engine := inventory.NewEngine(policy, cfg.LowStockThreshold)
	svc := service.New(repo, engine, service.Options{
		Cache:     promoCache,
		CacheTTL:  time.Duration(cfg.PromotionCacheTTLSeconds) * time.Second,
		Publisher: publisher,
		Logger:    logger,
		Location:  location,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("drink POS backend listening",
			zap.String("addr", cfg.Address()),
			zap.String("stock_policy", string(policy)),
			zap.String("timezone", location.String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newLogger(appEnv string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if appEnv == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func validateSecurityConfig(cfg config.Config) (inventory.Policy, *time.Location, error) {
	if len(cfg.AuthSecret) < 32 {
		return "", nil, fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	policy, err := inventory.ParsePolicy(cfg.StockPolicy)
	if err != nil {
		return "", nil, fmt.Errorf("STOCK_POLICY: %w", err)
	}
	location, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return "", nil, fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}
	return policy, location, nil
}
