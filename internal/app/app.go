package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gbwallet/ledger/internal/api"
	"github.com/gbwallet/ledger/internal/api/middleware"
	"github.com/gbwallet/ledger/internal/config"
	"github.com/gbwallet/ledger/internal/db"
	"github.com/gbwallet/ledger/internal/idempotency"
	"github.com/gbwallet/ledger/internal/notify"
	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/gbwallet/ledger/internal/service"
	"github.com/gbwallet/ledger/internal/worker"
	"github.com/gbwallet/ledger/migrations"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	idemStore := idempotency.NewStore(redisClient, pool, cfg.IdempotencyTTL)
	repo := repository.NewRepository(pool)
	store := repository.NewStore(pool)
	notifier := notify.NewRedisNotifier(redisClient)
	audit := service.NewAuditService()

	ledgerSvc := service.NewLedgerService(store, repo, audit, cfg.InitialCoinsMicros, cfg.SystemAccountID)
	exchangeSvc := service.NewExchangeService(store, cfg.ChipsPerCoin, cfg.SystemAccountID, notifier)
	marketSvc := service.NewMarketplaceService(store, repo, audit, notifier)
	ratingSvc := service.NewRatingService(store, cfg.RatingCooldown)
	conservationSvc := service.NewConservationService(store, cfg.InitialCoinsMicros)

	if err := ledgerSvc.EnsureSystemAccount(ctx); err != nil {
		return fmt.Errorf("seed system account: %w", err)
	}

	rollupWorker := worker.NewRollupWorker(ratingSvc).WithInterval(cfg.RollupInterval)
	stopRollup := rollupWorker.Run(ctx)
	conservationWorker := worker.NewConservationWorker(conservationSvc).WithInterval(cfg.ConservationInterval)
	stopConservation := conservationWorker.Run(ctx)
	logger.Info("workers started",
		zap.Duration("rollup_interval", cfg.RollupInterval),
		zap.Duration("conservation_interval", cfg.ConservationInterval))

	router := api.NewRouter(cfg, logger, pool, redisClient, idemStore, ledgerSvc, exchangeSvc, marketSvc, ratingSvc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopRollup()
	stopConservation()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
